package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pmikheev/staffauth/internal/apperrors"
	"github.com/pmikheev/staffauth/internal/models"
	"github.com/pmikheev/staffauth/internal/repository"
	"github.com/pmikheev/staffauth/internal/service/auth/tokenmanager"
)

const (
	defaultAccessHeaderName  = "token"
	defaultRefreshCookieName = "refreshToken"
	defaultDevice            = "web"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Response header that carries the access token
	AccessHeaderName string

	// Cookie that carries the refresh token
	RefreshCookieName string

	// Hasher to use during login or password change
	Hasher PasswordHasher
}

// Auth service
// Owns the login / renew / logout lifecycle of a (user, device) session
type AuthService struct {
	// Manager to issue and parse token pairs (access and refresh)
	token *tokenmanager.TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Repository to access credentials
	userRepo repository.UserRepo

	// Store that keeps the live refresh token per (user, device)
	store repository.RefreshTokenStore

	accessHeaderName  string
	refreshCookieName string

	// Hash compared against when the employee number is unknown, so both
	// failure branches cost one bcrypt comparison
	decoyHash string
}

func NewService(cfg Config, tm *tokenmanager.TokenManager, userRepo repository.UserRepo, store repository.RefreshTokenStore) (*AuthService, error) {
	if tm == nil || userRepo == nil || store == nil {
		return nil, errors.New("token manager, user repo and refresh store must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	if cfg.AccessHeaderName == "" {
		cfg.AccessHeaderName = defaultAccessHeaderName
	}
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = defaultRefreshCookieName
	}

	decoyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("error while preparing decoy hash. Err: %w", err)
	}

	return &AuthService{
		token:             tm,
		hasher:            hasher,
		userRepo:          userRepo,
		store:             store,
		accessHeaderName:  cfg.AccessHeaderName,
		refreshCookieName: cfg.RefreshCookieName,
		decoyHash:         decoyHash,
	}, nil
}

// CreateUser hashes the password and stores a new credential record
func (s *AuthService) CreateUser(ctx context.Context, user models.CreateUser, password string) (models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user.HashedPassword = hash
	return s.userRepo.CreateUser(ctx, user)
}

// Login verifies the credential and opens a session for the device.
// Unknown employee number and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, employeeNumber int64, password string, device string) (models.User, models.TokenPair, error) {
	if device == "" {
		device = defaultDevice
	}

	user, err := s.userRepo.GetUserByEmployeeNumber(ctx, employeeNumber)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		// Burn a comparison anyway so the miss is not observable by timing
		_ = s.hasher.Compare(s.decoyHash, password)
		return models.User{}, models.TokenPair{}, apperrors.ErrAuthentication
	case err != nil:
		return models.User{}, models.TokenPair{}, fmt.Errorf("error while loading credential. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, models.TokenPair{}, apperrors.ErrAuthentication
	}

	pair, err := s.token.GeneratePair(ctx, user, device)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	return user, pair, nil
}

// Renew rotates the session the presented refresh token belongs to.
//
// Two phase check: claims are read without signature verification only to find
// the store entry, then the decision is made by comparing the whole presented
// token against the stored value. A mismatch means the token was already
// rotated or was never issued. The entry is purged on mismatch so the
// device has to log in again (token leak containment).
//
// Concurrent renewals for one device race on get-compare-set. The store
// write is last-write-wins: every caller gets either a fresh pair or a
// denial, only the last written refresh token stays renewable, and the
// presented token is dead either way.
func (s *AuthService) Renew(ctx context.Context, presented string) (models.User, models.TokenPair, error) {
	claims, err := s.token.UnverifiedRefreshClaims(presented)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("%w: malformed token", apperrors.ErrRenewalDenied)
	}

	stored, err := s.store.Get(ctx, claims.UserID, claims.Device)
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		return models.User{}, models.TokenPair{}, fmt.Errorf("%w: no session", apperrors.ErrRenewalDenied)
	case err != nil:
		return models.User{}, models.TokenPair{}, fmt.Errorf("error while reading refresh store. Err: %w", err)
	}

	if stored != presented {
		// Replay of a rotated token. Drop the live entry for that device too:
		// someone else holds a token we issued, force a fresh login
		if err := s.store.Delete(ctx, claims.UserID, claims.Device); err != nil {
			return models.User{}, models.TokenPair{}, fmt.Errorf("error while purging stale session. Err: %w", err)
		}
		return models.User{}, models.TokenPair{}, fmt.Errorf("%w: token mismatch", apperrors.ErrRenewalDenied)
	}

	// The presented token matches the stored one, now verify the signature
	// so a store poisoned with a forged blob still can't mint sessions
	if _, err := s.token.ParseRefresh(presented); err != nil {
		_ = s.store.Delete(ctx, claims.UserID, claims.Device)
		return models.User{}, models.TokenPair{}, fmt.Errorf("%w: invalid token", apperrors.ErrRenewalDenied)
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.store.Delete(ctx, claims.UserID, claims.Device)
		return models.User{}, models.TokenPair{}, fmt.Errorf("%w: user gone", apperrors.ErrRenewalDenied)
	case err != nil:
		return models.User{}, models.TokenPair{}, fmt.Errorf("error while loading credential. Err: %w", err)
	}

	// GeneratePair overwrites the store entry: the presented token is dead
	// from this point even if re-presented
	pair, err := s.token.GeneratePair(ctx, user, claims.Device)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	return user, pair, nil
}

// Logout closes the session for the device
// Subsequent renewals for that device fail until a fresh login
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, device string) error {
	if device == "" {
		device = defaultDevice
	}
	return s.store.Delete(ctx, userID, device)
}

// ChangePassword verifies the current password and replaces it.
// The password_changed_at bump makes every earlier access token stale, and
// the device's refresh session is dropped so the client re-logs-in.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current string, newPassword string, device string) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("error while loading credential. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, current); err != nil {
		return apperrors.ErrAuthentication
	}

	if _, err := s.ResetPassword(ctx, userID, newPassword); err != nil {
		return err
	}

	if device != "" {
		_ = s.store.Delete(ctx, userID, device)
	}
	return nil
}

// ResetPassword replaces the password without checking the current one
// Callers must gate this behind the admin role
func (s *AuthService) ResetPassword(ctx context.Context, userID uuid.UUID, newPassword string) (models.User, error) {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.userRepo.UpdatePassword(ctx, userID, hash)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

// GetUser returns the user profile by id.
// Returns apperrors.ErrUserNotFound if no such user exists
func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

// GetUserFromRequest authenticates a request by its access token header.
// Tokens issued before the credential's last password change are rejected
// even though their signature is still valid.
func (s *AuthService) GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error) {
	access := r.Header.Get(s.accessHeaderName)
	if access == "" {
		return models.User{}, apperrors.ErrTokenMissing
	}

	claims, err := s.token.ParseAccess(access)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, fmt.Errorf("%w: unknown user", apperrors.ErrTokenInvalid)
	case err != nil:
		return models.User{}, fmt.Errorf("error while loading credential. Err: %w", err)
	}

	// Both timestamps are second precision: the token keeps whole seconds and
	// the comparison below truncates the db value the same way
	if claims.IssuedAt.Time.Before(user.PasswordChangedAt.Truncate(time.Second)) {
		return models.User{}, fmt.Errorf("%w: issued before password change", apperrors.ErrTokenInvalid)
	}

	return user, nil
}

// DeviceFromRefresh extracts the device name from a refresh token
// Claims are unverified: only usable to address the store, not to authorize
func (s *AuthService) DeviceFromRefresh(refresh string) (string, error) {
	claims, err := s.token.UnverifiedRefreshClaims(refresh)
	if err != nil {
		return "", err
	}
	return claims.Device, nil
}

// SetTokenPairToResponse writes the access token header and refresh cookie
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, pair.Access.Value)
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     "/",
		MaxAge:   int(s.token.RefreshTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// SetTokenPairToRequest sets the same header and cookie on an outgoing request
// Handy in tests that need an authenticated client
func (s *AuthService) SetTokenPairToRequest(r *http.Request, pair models.TokenPair) {
	r.Header.Set(s.accessHeaderName, pair.Access.Value)
	r.AddCookie(&http.Cookie{
		Name:  s.refreshCookieName,
		Value: pair.Refresh.Value,
	})
}

// ReadRefreshToken extracts the refresh token from the request cookie
func (s *AuthService) ReadRefreshToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return "", apperrors.ErrRefreshTokenNotFound
	}
	return cookie.Value, nil
}

// ClearRefreshCookie expires the refresh cookie on the client
func (s *AuthService) ClearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
