// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package docserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	authctx "github.com/Perth00/WanderPlan-sub001/internal/auth"
)

const tokenTTL = 24 * time.Hour

// ErrInvalidCredentials is returned for a wrong email/password pair.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService issues and validates the JWTs that scope every document to a
// user.
type AuthService struct {
	secret []byte
	db     Querier
}

// Claims is the token payload. DeviceID identifies the originating device
// when the client supplies one at login, so server logs can attribute
// changes in multi-device sync sessions.
type Claims struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// User is the account record, without the password hash.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// TokenResponse is the login/register response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        User   `json:"user"`
}

func NewAuthService(secret string, db Querier) *AuthService {
	return &AuthService{secret: []byte(secret), db: db}
}

// Register creates an account and returns a signed token for it.
func (s *AuthService) Register(ctx context.Context, email, username, password, deviceID string) (TokenResponse, error) {
	if email == "" || username == "" || password == "" {
		return TokenResponse{}, errors.New("email, username, password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return TokenResponse{}, err
	}

	user := User{ID: uuid.NewString(), Email: email, Username: username}
	_, err = s.db.Exec(ctx, `
		INSERT INTO users (id, email, username, password_hash)
		VALUES ($1,$2,$3,$4)
	`, user.ID, user.Email, user.Username, string(hash))
	if err != nil {
		return TokenResponse{}, err
	}
	return s.issueToken(user, deviceID)
}

// Login verifies the password and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password, deviceID string) (TokenResponse, error) {
	var user User
	var passwordHash string
	err := s.db.QueryRow(ctx, `
		SELECT id, email, username, password_hash FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.Username, &passwordHash)
	if err != nil {
		return TokenResponse{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return TokenResponse{}, ErrInvalidCredentials
	}
	return s.issueToken(user, deviceID)
}

// ValidateToken returns the claims a token was issued with.
func (s *AuthService) ValidateToken(token string) (*Claims, error) {
	return s.parseToken(token)
}

func (s *AuthService) issueToken(user User, deviceID string) (TokenResponse, error) {
	claims := Claims{
		UserID:   user.ID,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(tokenTTL.Seconds()),
		User:        user,
	}, nil
}

func (s *AuthService) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

// JWTMiddleware validates bearer tokens and stores the user id in locals.
// Websocket upgrades cannot set headers from the browser, so a token query
// parameter is accepted as a fallback.
func JWTMiddleware(auth *AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		claims, err := auth.ValidateToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals("user_id", claims.UserID)
		ctx := authctx.SetUserID(c.UserContext(), claims.UserID)
		if claims.DeviceID != "" {
			c.Locals("device_id", claims.DeviceID)
			ctx = authctx.SetDeviceID(ctx, claims.DeviceID)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
