package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kakachat/internal/repositories"
)

const resetTokenTTL = time.Hour

var ErrResetTokenInvalid = errors.New("invalid or expired reset token")

type PasswordResetService interface {
	RequestReset(email string) error
	ResetPassword(token, newPassword string) error
}

type passwordResetService struct {
	logger   *zap.SugaredLogger
	userRepo repositories.UserRepository
	repo     repositories.PasswordResetRepository
	emails   EmailService // может быть nil, тогда код живёт только в логе
	auth     AuthService
}

func NewPasswordResetService(logger *zap.SugaredLogger, userRepo repositories.UserRepository, repo repositories.PasswordResetRepository, emails EmailService, auth AuthService) PasswordResetService {
	return &passwordResetService{
		logger:   logger,
		userRepo: userRepo,
		repo:     repo,
		emails:   emails,
		auth:     auth,
	}
}

// RequestReset issues a reset token and emails it. Always returns nil for an
// unknown email so the endpoint does not leak which accounts exist.
func (s *passwordResetService) RequestReset(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return fmt.Errorf("email is required")
	}
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		s.logger.Infow("password reset for unknown email", "email", email)
		return nil
	}

	token, err := s.auth.NewOpaqueToken()
	if err != nil {
		return err
	}
	if _, err := s.repo.Create(user.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}

	if s.emails != nil {
		if err := s.emails.SendPasswordResetEmail(user.Email, token); err != nil {
			s.logger.Warnw("failed to send reset email", "email", user.Email, "error", err)
		}
	}
	return nil
}

func (s *passwordResetService) ResetPassword(token, newPassword string) error {
	token = strings.TrimSpace(token)
	newPassword = strings.TrimSpace(newPassword)
	if token == "" || newPassword == "" {
		return fmt.Errorf("token and password are required")
	}
	if len(newPassword) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}

	pr, err := s.repo.GetByToken(token)
	if err != nil {
		return ErrResetTokenInvalid
	}
	if pr.UsedAt != nil || time.Now().After(pr.ExpiresAt) {
		return ErrResetTokenInvalid
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(pr.UserID, hash); err != nil {
		return err
	}
	return s.repo.MarkUsed(pr.ID)
}
