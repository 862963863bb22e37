package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const adminSubject = "admin"

var (
	ErrAdminUnauthorized = errors.New("admin credentials required")
	ErrAdminForbidden    = errors.New("invalid admin credentials")
)

// AdminCredential is what a request presents to reach the admin console:
// the shared secret or a token issued by Login
type AdminCredential struct {
	Secret string
	Token  string
}

// AdminAuthenticator guards the admin console. Pipelines never depend on
// it, so the shared-secret model can be replaced by per-user accounts.
type AdminAuthenticator interface {
	Login(secret string) (token string, expiresAt time.Time, err error)
	Authorize(cred AdminCredential) error
}

// AdminClaims are the claims of an admin session token
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuthService checks the shared admin secret against its bcrypt hash
// and issues HS256 session tokens
type AdminAuthService struct {
	secretHash  []byte
	tokenSecret []byte
	tokenTTL    time.Duration
	now         func() time.Time
}

// NewAdminAuthService hashes the shared secret; the plain value is not kept
func NewAdminAuthService(adminSecret, tokenSecret string, tokenTTL time.Duration) (*AdminAuthService, error) {
	if adminSecret == "" {
		return nil, fmt.Errorf("admin secret is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin secret: %w", err)
	}
	if tokenSecret == "" {
		tokenSecret = adminSecret
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AdminAuthService{
		secretHash:  hash,
		tokenSecret: []byte(tokenSecret),
		tokenTTL:    tokenTTL,
		now:         time.Now,
	}, nil
}

func (s *AdminAuthService) checkSecret(secret string) error {
	if secret == "" {
		return ErrAdminUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(s.secretHash, []byte(secret)); err != nil {
		return ErrAdminForbidden
	}
	return nil
}

// Login exchanges the shared secret for a session token
func (s *AdminAuthService) Login(secret string) (string, time.Time, error) {
	if err := s.checkSecret(secret); err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &AdminClaims{
		Role: adminSubject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.tokenSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken parses and checks an admin session token
func (s *AdminAuthService) ValidateToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.tokenSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid || claims.Role != adminSubject {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Authorize accepts either a valid session token or the shared secret
func (s *AdminAuthService) Authorize(cred AdminCredential) error {
	if cred.Token != "" {
		if _, err := s.ValidateToken(cred.Token); err != nil {
			return ErrAdminForbidden
		}
		return nil
	}
	return s.checkSecret(cred.Secret)
}
