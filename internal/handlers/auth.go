package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/pmikheev/staffauth/internal/apperrors"
	"github.com/pmikheev/staffauth/internal/handlers/render"
	"github.com/pmikheev/staffauth/internal/handlers/userctx"
	"github.com/pmikheev/staffauth/internal/logger"
	"github.com/pmikheev/staffauth/internal/metrics"
	"github.com/pmikheev/staffauth/internal/models"
)

// userContent is the profile payload login and /me answer with
type userContent struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Picture        string    `json:"picture"`
	EmployeeNumber string    `json:"employeeNumber"`
	Role           string    `json:"role"`
}

func contentFromUser(user models.User) userContent {
	return userContent{
		ID:             user.ID,
		Name:           user.Name,
		Picture:        user.Picture,
		EmployeeNumber: strconv.FormatInt(user.EmployeeNumber, 10),
		Role:           user.Role,
	}
}

func handleLogin(as authService, l logger.Logger) http.Handler {
	type loginRequest struct {
		EmployeeNumber string `json:"employeeNumber" validate:"required,employeenumber"`
		Password       string `json:"password" validate:"required"`
		Device         string `json:"device" validate:"omitempty,max=64"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[loginRequest](w, r)
		if err != nil {
			return
		}

		// Validator guarantees the number parses
		number, _ := strconv.ParseInt(data.EmployeeNumber, 10, 64)

		user, pair, err := as.Login(r.Context(), number, data.Password, data.Device)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrAuthentication):
				metrics.AuthOps.WithLabelValues("login", "denied").Inc()
				render.Fail(w, http.StatusUnauthorized, render.CodeAuthenticationFailed, "Wrong employee number or password")
			default:
				metrics.AuthOps.WithLabelValues("login", "error").Inc()
				l.Error("login failed", "error", err.Error())
				render.Fail(w, http.StatusInternalServerError, render.CodeInternalError, "Internal server error")
			}
			return
		}

		metrics.AuthOps.WithLabelValues("login", "ok").Inc()
		as.SetTokenPairToResponse(w, pair)
		render.Success(w, contentFromUser(user))
	})
}

func handleRenewToken(as authService, l logger.Logger) http.Handler {
	// Renewal denial always instructs the client to drop its local session
	denied := func(w http.ResponseWriter) {
		as.ClearRefreshCookie(w)
		render.FailResponse(w, http.StatusBadRequest, render.Response{
			Error:      &render.ErrorInfo{Code: render.CodeRenewalDenied, Message: "Renewal denied"},
			RemoveUser: true,
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := as.ReadRefreshToken(r)
		if err != nil {
			metrics.AuthOps.WithLabelValues("renew", "denied").Inc()
			denied(w)
			return
		}

		_, pair, err := as.Renew(r.Context(), refresh)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrRenewalDenied):
				metrics.AuthOps.WithLabelValues("renew", "denied").Inc()
				denied(w)
			default:
				// Store or db trouble: not the client's fault, keep its cookie
				metrics.AuthOps.WithLabelValues("renew", "error").Inc()
				l.Error("token renewal failed", "error", err.Error())
				render.Fail(w, http.StatusInternalServerError, render.CodeInternalError, "Renewal failed")
			}
			return
		}

		metrics.AuthOps.WithLabelValues("renew", "ok").Inc()
		as.SetTokenPairToResponse(w, pair)
		render.Success(w, nil)
	})
}

func handleLogout(as authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		// The device lives in the refresh token; a missing or unreadable
		// cookie falls back to the default device
		device := ""
		if refresh, err := as.ReadRefreshToken(r); err == nil {
			device, _ = as.DeviceFromRefresh(refresh)
		}

		if err := as.Logout(r.Context(), user.ID, device); err != nil {
			l.Error("logout failed", "error", err.Error(), "user_id", user.ID)
			render.Fail(w, http.StatusInternalServerError, render.CodeInternalError, "Logout failed")
			return
		}

		metrics.AuthOps.WithLabelValues("logout", "ok").Inc()
		as.ClearRefreshCookie(w)
		render.Success(w, nil)
	})
}

func handleUserMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())
		render.Success(w, contentFromUser(user))
	})
}

func handleUserByID(as authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RequireSelf already validated the path value
		targetID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.Fail(w, http.StatusBadRequest, render.CodeValidationFailed, "Invalid user id")
			return
		}

		user, err := as.GetUser(r.Context(), targetID)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserNotFound):
				render.Fail(w, http.StatusNotFound, render.CodeUserNotFound, "User not found")
			default:
				l.Error("user lookup failed", "error", err.Error(), "target_id", targetID)
				render.Fail(w, http.StatusInternalServerError, render.CodeInternalError, "Internal server error")
			}
			return
		}

		render.Success(w, contentFromUser(user))
	})
}

func handleChangePassword(as authService, l logger.Logger) http.Handler {
	type changePasswordRequest struct {
		CurrentPassword string `json:"currentPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required,min=8"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[changePasswordRequest](w, r)
		if err != nil {
			return
		}

		user, _ := userctx.FromContext(r.Context())

		device := ""
		if refresh, err := as.ReadRefreshToken(r); err == nil {
			device, _ = as.DeviceFromRefresh(refresh)
		}

		err = as.ChangePassword(r.Context(), user.ID, data.CurrentPassword, data.NewPassword, device)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrAuthentication):
				render.Fail(w, http.StatusUnauthorized, render.CodeAuthenticationFailed, "Current password is wrong")
			default:
				l.Error("password change failed", "error", err.Error(), "user_id", user.ID)
				render.Fail(w, http.StatusInternalServerError, render.CodeInternalError, "Internal server error")
			}
			return
		}

		// The session for this device is gone, make the client re-login
		as.ClearRefreshCookie(w)
		render.Success(w, nil)
	})
}

func handleResetPassword(as authService, l logger.Logger) http.Handler {
	type resetPasswordRequest struct {
		NewPassword string `json:"newPassword" validate:"required,min=8"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		targetID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.Fail(w, http.StatusBadRequest, render.CodeValidationFailed, "Invalid user id")
			return
		}

		data, err := render.BindAndValidate[resetPasswordRequest](w, r)
		if err != nil {
			return
		}

		_, err = as.ResetPassword(r.Context(), targetID, data.NewPassword)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserNotFound):
				render.Fail(w, http.StatusNotFound, render.CodeUserNotFound, "User not found")
			default:
				l.Error("password reset failed", "error", err.Error(), "target_id", targetID)
				render.Fail(w, http.StatusInternalServerError, render.CodeInternalError, "Internal server error")
			}
			return
		}

		render.Success(w, nil)
	})
}

func handleForceLogout(as authService, l logger.Logger) http.Handler {
	type forceLogoutRequest struct {
		Device string `json:"device" validate:"omitempty,max=64"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		targetID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.Fail(w, http.StatusBadRequest, render.CodeValidationFailed, "Invalid user id")
			return
		}

		// The body is optional: no body means every default device session
		var data forceLogoutRequest
		if r.ContentLength != 0 {
			data, err = render.BindAndValidate[forceLogoutRequest](w, r)
			if err != nil {
				return
			}
		}

		if err := as.Logout(r.Context(), targetID, data.Device); err != nil {
			l.Error("forced logout failed", "error", err.Error(), "target_id", targetID)
			render.Fail(w, http.StatusInternalServerError, render.CodeInternalError, "Internal server error")
			return
		}

		metrics.AuthOps.WithLabelValues("logout", "forced").Inc()
		render.Success(w, nil)
	})
}
