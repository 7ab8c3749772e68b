package service

import (
	"context"
	"strings"

	"skillswap/internal/models"
	"skillswap/internal/repository"
	"skillswap/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer signs access tokens for a user.
type TokenIssuer interface {
	Issue(userID uint) (string, error)
}

// Welcomer is told about new accounts.
type Welcomer interface {
	Welcome(user models.User)
}

type SignupInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService struct {
	users    repository.UserRepository
	tokens   TokenIssuer
	welcomer Welcomer
	cost     int
}

func NewAuthService(users repository.UserRepository, tokens TokenIssuer, welcomer Welcomer) *AuthService {
	return &AuthService{users: users, tokens: tokens, welcomer: welcomer, cost: bcrypt.DefaultCost}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil && existing != nil:
		return nil, models.NewConflictError("User already exists")
	case err != nil && !models.IsCode(err, models.CodeNotFound):
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hashed),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		IsPublic:  true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	if s.welcomer != nil {
		s.welcomer.Welcome(*user)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := models.NewUnauthorizedError("Invalid credentials")

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); cmpErr != nil {
		return nil, invalid
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}
