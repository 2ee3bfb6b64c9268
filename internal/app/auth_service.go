package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"docqa-client/internal/api"
)

const minPasswordLength = 8

type AuthGateway interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Register(ctx context.Context, email, password string) (*api.RegisteredUser, error)
}

type SessionManager interface {
	Login(ctx context.Context, credential string) error
	Logout(ctx context.Context) error
}

type AuthService struct {
	gateway  AuthGateway
	session  SessionManager
	validate *validator.Validate
}

type RegisterInput struct {
	Email    string `validate:"required,email,max=128"`
	Password string `validate:"required,min=8,max=128"`
}

func NewAuthService(gateway AuthGateway, session SessionManager) *AuthService {
	return &AuthService{
		gateway:  gateway,
		session:  session,
		validate: validator.New(),
	}
}

// Login submits credentials, then persists and broadcasts the token.
func (s *AuthService) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	resp, err := s.gateway.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		return ErrMissingToken
	}
	return s.session.Login(ctx, resp.AccessToken)
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*api.RegisteredUser, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, describeValidation(err))
	}
	return s.gateway.Register(ctx, input.Email, input.Password)
}

func (s *AuthService) Logout(ctx context.Context) error {
	return s.session.Logout(ctx)
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch {
	case fe.Field() == "Email":
		return "a valid email is required"
	case fe.Tag() == "min":
		return fmt.Sprintf("password must be at least %d characters", minPasswordLength)
	default:
		return strings.ToLower(fe.Field()) + " is invalid"
	}
}
