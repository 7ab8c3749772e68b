package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"skillswap/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubIssuer struct{ err error }

func (s stubIssuer) Issue(userID uint) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("token-%d", userID), nil
}

func newAuth(h *harness, issuer TokenIssuer) *AuthService {
	svc := NewAuthService(h.users, issuer, h.fanout)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestAuthService_Signup(t *testing.T) {
	h := newHarness(t)
	svc := newAuth(h, stubIssuer{})
	ctx := context.Background()

	res, err := svc.Signup(ctx, SignupInput{Username: "dave", Email: " Dave@Example.com ", Password: "guitar4life", FirstName: "Dave"})
	require.NoError(t, err)
	h.fanout.Wait()

	assert.Equal(t, fmt.Sprintf("token-%d", res.User.ID), res.Token)
	assert.Equal(t, "dave@example.com", res.User.Email)
	assert.True(t, res.User.IsPublic)
	assert.NotEqual(t, "guitar4life", res.User.Password)
	assert.Equal(t, []string{"welcome:dave@example.com"}, h.mailer.sent())

	tests := []struct {
		name string
		in   SignupInput
		code string
	}{
		{"duplicate email", SignupInput{Username: "dave2", Email: "DAVE@example.com", Password: "guitar4life"}, models.CodeConflict},
		{"duplicate username", SignupInput{Username: "dave", Email: "other@example.com", Password: "guitar4life"}, models.CodeConflict},
		{"weak password", SignupInput{Username: "erin", Email: "erin@example.com", Password: "short"}, models.CodeValidation},
		{"bad username", SignupInput{Username: "e!", Email: "erin@example.com", Password: "guitar4life"}, models.CodeValidation},
		{"missing fields", SignupInput{Username: "erin"}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, errCode(err))
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	h := newHarness(t)
	svc := newAuth(h, stubIssuer{})
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Username: "dave", Email: "dave@example.com", Password: "guitar4life"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, "DAVE@example.com", "guitar4life")
	require.NoError(t, err)
	assert.Equal(t, "dave", res.User.Username)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(ctx, "dave@example.com", "wrong-pass1")
	assert.Equal(t, models.CodeUnauthorized, errCode(err))
	_, err = svc.Login(ctx, "nobody@example.com", "guitar4life")
	assert.Equal(t, models.CodeUnauthorized, errCode(err))

	broken := newAuth(h, stubIssuer{err: errors.New("no key")})
	_, err = broken.Login(ctx, "dave@example.com", "guitar4life")
	assert.Equal(t, models.CodeInternal, errCode(err))
}
