package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"skillswap/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every reason a bearer token is rejected.
var ErrInvalidToken = errors.New("invalid or expired token")

// JWTManager issues and verifies HS256 access tokens.
type JWTManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewJWTManager creates a manager from the JWT_* settings.
func NewJWTManager(cfg *config.Config) *JWTManager {
	return &JWTManager{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		ttl:      cfg.JWTTTL(),
		now:      time.Now,
	}
}

// Issue signs a token whose subject is userID.
func (m *JWTManager) Issue(userID uint) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    m.issuer,
		Audience:  jwt.ClaimStrings{m.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates the token and returns its subject as a user ID.
func (m *JWTManager) Parse(tokenString string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func (m *JWTManager) authenticate(c *fiber.Ctx, token string) error {
	userID, err := m.Parse(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
			"code":  "UNAUTHORIZED",
		})
	}
	c.Locals("userID", userID)
	c.SetUserContext(WithUserID(c.UserContext(), userID))
	return c.Next()
}

// AuthRequired enforces a bearer token on protected routes.
func (m *JWTManager) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
				"code":  "UNAUTHORIZED",
			})
		}
		return m.authenticate(c, token)
	}
}

// WebSocketAuthRequired accepts the token from the query string, where browsers
// can put it during the upgrade, falling back to the Authorization header.
func (m *JWTManager) WebSocketAuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			var ok bool
			if token, ok = bearerToken(c); !ok {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Token required",
					"code":  "UNAUTHORIZED",
				})
			}
		}
		return m.authenticate(c, token)
	}
}
