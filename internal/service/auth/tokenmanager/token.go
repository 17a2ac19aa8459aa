package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pmikheev/staffauth/internal/apperrors"
	"github.com/pmikheev/staffauth/internal/models"
	"github.com/pmikheev/staffauth/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
}

type RefreshTokenClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
	Device string    `json:"dev"`
}

// Token manager config with sensible defaults
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	// Secret key to sign tokens
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Store that keeps the live refresh token per (user, device)
	store repository.RefreshTokenStore
}

func New(cfg Config, store repository.RefreshTokenStore) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        jwt.GetSigningMethod(cfg.Alg),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		store:      store,
	}, nil
}

// RefreshTTL the manager signs refresh tokens with
// Handlers need it to set the cookie Max-Age
func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// GeneratePair issues a new access and refresh token for the user on the
// given device and saves the refresh token to the store. The save overwrites
// the previous entry, so any earlier refresh token for that device dies here.
func (m *TokenManager) GeneratePair(ctx context.Context, user models.User, device string) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)
	accessExpiresAt := now.Add(m.accessTTL)
	refreshExpiresAt := now.Add(m.refreshTTL)

	// Generate JWT access token encoded as string
	accessToken := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
			},
			UserID: user.ID,
		},
	)
	access, err := accessToken.SignedString([]byte(m.key))
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	// Refresh token is a signed blob too: it embeds the (user, device) pair
	// so renewal knows which store entry to compare against
	refreshToken := jwt.NewWithClaims(
		m.alg,
		RefreshTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(refreshExpiresAt),
			},
			UserID: user.ID,
			Device: device,
		},
	)
	refresh, err := refreshToken.SignedString([]byte(m.key))
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	err = m.store.Save(ctx, user.ID, device, refresh, m.refreshTTL)
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: refreshExpiresAt},
	}, nil
}

// Parse and validate access token
// Expired tokens are reported distinctly so clients know to renew instead of re-login
func (m *TokenManager) ParseAccess(access string) (AccessTokenClaims, error) {
	claims := AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(
		access,
		&claims,
		func(t *jwt.Token) (any, error) { return []byte(m.key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
	)

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	default:
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}
}

// Parse and validate refresh token signature and expiry
func (m *TokenManager) ParseRefresh(refresh string) (RefreshTokenClaims, error) {
	claims := RefreshTokenClaims{}

	_, err := jwt.ParseWithClaims(
		refresh,
		&claims,
		func(t *jwt.Token) (any, error) { return []byte(m.key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
	)

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	default:
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}
}

// UnverifiedRefreshClaims extracts claims without checking the signature.
//
// Only usable to route a renewal to its store entry: the caller then compares
// the whole presented token against the stored value and verifies the
// signature before issuing anything. Never authorize on these claims alone.
func (m *TokenManager) UnverifiedRefreshClaims(refresh string) (RefreshTokenClaims, error) {
	claims := RefreshTokenClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(refresh, &claims)
	if err != nil {
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}

	return claims, nil
}
