package services

import (
	"context"
	"errors"
	"strings"

	"shopfront/internal/apperr"
	"shopfront/internal/domain"
	"shopfront/internal/repos"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCreds = errors.New("invalid email or password")

type AuthService struct {
	Users   *repos.UserRepo
	AdminID int64
}

func NewAuthService(users *repos.UserRepo, adminID int64) *AuthService {
	return &AuthService{Users: users, AdminID: adminID}
}

// Register creates the account and logs it in on sid.
func (s *AuthService) Register(ctx context.Context, sid, email, name, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	taken, err := s.Users.EmailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.New(apperr.CodeConflict, "email already registered")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	id, err := s.Users.Create(ctx, email, strings.TrimSpace(name), string(hash))
	if err != nil {
		return nil, err
	}
	if err := s.Users.BindSession(ctx, sid, id); err != nil {
		return nil, err
	}
	return s.Users.ByID(ctx, id)
}

func (s *AuthService) Login(ctx context.Context, sid, email, password string) (*domain.User, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, ErrBadCreds
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Users.UnbindSession(ctx, sid)
}

func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	return s.Users.SessionUser(ctx, sid)
}

// Identity resolves sid to the caller; unknown or logged-out sessions are anonymous.
func (s *AuthService) Identity(ctx context.Context, sid string) (domain.Identity, *domain.User, error) {
	if sid == "" {
		return domain.Anonymous(), nil, nil
	}
	u, err := s.Users.SessionUser(ctx, sid)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return domain.Anonymous(), nil, nil
		}
		return domain.Anonymous(), nil, err
	}
	return domain.Identity{UserID: u.ID, Authenticated: true, Admin: u.ID == s.AdminID}, u, nil
}
