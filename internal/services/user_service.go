package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kakachat/internal/models"
	"kakachat/internal/repositories"
)

var ErrEmailTaken = errors.New("email is already registered")

type UserService interface {
	Register(req *models.RegisterRequest) (*models.User, error)
	GetByID(id int64) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	ListUsers(excludeID int64) ([]*models.User, error)
	SetOnline(id int64, online bool) error

	// refresh helpers
	UpdateRefresh(userID int64, token string, expiresAt time.Time) error
	RotateRefresh(oldToken, newToken string, newExpiresAt time.Time) (*models.User, error)
	ClearRefresh(userID int64) error
	GetByRefreshToken(token string) (*models.User, error)
}

type userService struct {
	logger       *zap.SugaredLogger
	repo         repositories.UserRepository
	emailService EmailService // может быть nil, если SMTP не настроен
	authService  AuthService
}

func NewUserService(logger *zap.SugaredLogger, repo repositories.UserRepository, emailService EmailService, authService AuthService) UserService {
	return &userService{
		logger:       logger,
		repo:         repo,
		emailService: emailService,
		authService:  authService,
	}
}

func (s *userService) Register(req *models.RegisterRequest) (*models.User, error) {
	if strings.TrimSpace(req.Password) == "" {
		return nil, fmt.Errorf("password is required")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if existing, err := s.repo.GetByEmail(email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := s.authService.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Image:        req.Image,
		PasswordHash: hash,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, err
	}

	if s.emailService != nil {
		if err := s.emailService.SendWelcomeEmail(user.Email, user.Name); err != nil {
			// warn but do not fail creation
			s.logger.Warnw("failed to send welcome email", "email", user.Email, "error", err)
		}
	}

	return user, nil
}

func (s *userService) GetByID(id int64) (*models.User, error) {
	return s.repo.GetByID(id)
}

func (s *userService) GetByEmail(email string) (*models.User, error) {
	return s.repo.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
}

func (s *userService) ListUsers(excludeID int64) ([]*models.User, error) {
	return s.repo.List(excludeID)
}

func (s *userService) SetOnline(id int64, online bool) error {
	return s.repo.SetOnline(id, online)
}

func (s *userService) UpdateRefresh(userID int64, token string, expiresAt time.Time) error {
	return s.repo.UpdateRefresh(userID, token, expiresAt)
}

func (s *userService) RotateRefresh(oldToken, newToken string, newExpiresAt time.Time) (*models.User, error) {
	return s.repo.RotateRefresh(oldToken, newToken, newExpiresAt)
}

func (s *userService) ClearRefresh(userID int64) error {
	return s.repo.ClearRefresh(userID)
}

func (s *userService) GetByRefreshToken(token string) (*models.User, error) {
	return s.repo.GetByRefreshToken(token)
}
