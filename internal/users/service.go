package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kataba/internal/auth"

	"github.com/sirupsen/logrus"
)

const minPasswordLength = 8

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("a user with this login already exists")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrInvalidInput       = errors.New("login and a password of at least 8 characters are required")
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) RegisterWebUser(ctx context.Context, login, password string, email *string) (*WebUser, error) {
	login = strings.TrimSpace(login)
	if login == "" || len(password) < minPasswordLength {
		return nil, ErrInvalidInput
	}

	existingUser, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		logrus.Errorf("failed to check existing user '%s': %v", login, err)
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if existingUser != nil {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		logrus.Errorf("failed to hash password for '%s': %v", login, err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, login, hashedPassword, email)
	if err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			return nil, err
		}
		logrus.Errorf("failed to create user '%s': %v", login, err)
		return nil, err
	}
	logrus.Infof("registered web user %d (%s)", user.ID, user.Login)
	return user, nil
}

func (s *Service) AuthenticateWebUser(ctx context.Context, login, password string) (*WebUser, error) {
	user, err := s.repo.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		logrus.Errorf("failed to load user '%s' for authentication: %v", login, err)
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) GetWebUserByID(ctx context.Context, id int64) (*WebUser, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		logrus.Errorf("failed to get user %d: %v", id, err)
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
