package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Login failures collapse to this single error so responses can't be
	// used to probe which employee numbers exist
	ErrAuthentication = errors.New("wrong employee number or password")

	ErrTokenMissing = errors.New("access token missing")
	ErrTokenInvalid = errors.New("access token invalid")
	ErrTokenExpired = errors.New("access token expired")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRenewalDenied        = errors.New("token renewal denied")
)
