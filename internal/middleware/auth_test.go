package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skillswap/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTManager() *JWTManager {
	return NewJWTManager(&config.Config{
		JWTSecret:   "test-secret-key-12345678901234567890123456789012",
		JWTIssuer:   "skillswap-api",
		JWTAudience: "skillswap-app",
		JWTTTLHours: 1,
	})
}

func TestJWTManager_IssueAndParse(t *testing.T) {
	m := testJWTManager()

	token, err := m.Issue(42)
	require.NoError(t, err)

	userID, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	t.Run("expired", func(t *testing.T) {
		m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { m.now = time.Now }()
		_, err := m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := testJWTManager()
		other.audience = "someone-else"
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong signing method", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "42"})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthRequired(t *testing.T) {
	m := testJWTManager()
	app := fiber.New()
	app.Get("/test", m.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": c.Locals("userID")})
	})

	valid, err := m.Issue(123)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"happy path", "Bearer " + valid, http.StatusOK},
		{"lowercase scheme", "bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]float64
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, float64(123), body["userID"])
			}
		})
	}
}

func TestWebSocketAuthRequired_QueryToken(t *testing.T) {
	m := testJWTManager()
	app := fiber.New()
	app.Get("/ws", m.WebSocketAuthRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	token, err := m.Issue(5)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
