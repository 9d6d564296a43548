package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/parisxmas/intake/internal/auth"
	"github.com/parisxmas/intake/internal/fault"
	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/repository"
)

var ErrInvalidCredentials = fault.NewClientError("invalid credentials", nil)

type AuthService struct {
	users     *repository.UserRepo
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(users *repository.UserRepo, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{users: users, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

type AuthResult struct {
	Token string              `json:"token"`
	User  models.UserResponse `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.Issue(user)
}

// Issue signs a session token for an already authenticated user.
func (s *AuthService) Issue(user *models.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(s.jwtSecret, user.ID, user.Email, user.Role, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user.ToResponse()}, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fault.NewClientError("user not found", fault.ErrNotFound)
	}
	resp := user.ToResponse()
	return &resp, nil
}

// SeedAdmin creates the admin account unless the email is taken. It reports
// whether an account was created.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) (bool, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return false, nil
	}
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		Role:         models.RoleAdmin,
	}
	if err := s.users.Create(ctx, nil, user); err != nil {
		return false, err
	}
	return true, nil
}

// ListUsers pages through accounts for the staff user list.
func (s *AuthService) ListUsers(ctx context.Context, role string, skip, limit int) ([]models.UserResponse, int, error) {
	users, total, err := s.users.List(ctx, role, skip, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return out, total, nil
}

// DeleteUser removes an account and its submissions. Staff cannot delete
// their own account.
func (s *AuthService) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return fault.NewClientError("cannot delete your own account", fault.ErrConflict)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			return fault.NewClientError("user not found", err)
		}
		return err
	}
	return nil
}
