package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kakachat/internal/models"
)

type fakeResetRepo struct {
	resets map[string]*models.PasswordReset
	nextID int64
}

func newFakeResetRepo() *fakeResetRepo {
	return &fakeResetRepo{resets: make(map[string]*models.PasswordReset)}
}

func (r *fakeResetRepo) Create(userID int64, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	r.nextID++
	pr := &models.PasswordReset{ID: r.nextID, UserID: userID, Token: token, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	r.resets[token] = pr
	return pr, nil
}

func (r *fakeResetRepo) GetByToken(token string) (*models.PasswordReset, error) {
	pr, ok := r.resets[token]
	if !ok {
		return nil, ErrResetTokenInvalid
	}
	return pr, nil
}

func (r *fakeResetRepo) MarkUsed(id int64) error {
	for _, pr := range r.resets {
		if pr.ID == id {
			now := time.Now()
			pr.UsedAt = &now
		}
	}
	return nil
}

type fakeEmails struct {
	resetTokens map[string]string // email -> token
}

func (e *fakeEmails) SendWelcomeEmail(string, string) error { return nil }

func (e *fakeEmails) SendPasswordResetEmail(email, token string) error {
	if e.resetTokens == nil {
		e.resetTokens = make(map[string]string)
	}
	e.resetTokens[email] = token
	return nil
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()

	auth := NewAuthService("test-secret")
	users := testUsers()
	hash, err := auth.HashPassword("old-password")
	require.NoError(t, err)
	users.users[1].PasswordHash = hash

	resets := newFakeResetRepo()
	emails := &fakeEmails{}
	svc := NewPasswordResetService(zap.NewNop().Sugar(), users, resets, emails, auth)

	require.NoError(t, svc.RequestReset(" Alice@Example.COM "))
	token := emails.resetTokens["alice@example.com"]
	require.NotEmpty(t, token)

	require.NoError(t, svc.ResetPassword(token, "new-password"))
	require.NoError(t, auth.CheckPassword(users.users[1].PasswordHash, "new-password"))
	require.Error(t, auth.CheckPassword(users.users[1].PasswordHash, "old-password"))

	// токен одноразовый
	require.ErrorIs(t, svc.ResetPassword(token, "another-one"), ErrResetTokenInvalid)
}

func TestRequestReset_UnknownEmailIsSilent(t *testing.T) {
	t.Parallel()

	emails := &fakeEmails{}
	svc := NewPasswordResetService(zap.NewNop().Sugar(), testUsers(), newFakeResetRepo(), emails, NewAuthService("s"))

	require.NoError(t, svc.RequestReset("ghost@example.com"))
	require.Empty(t, emails.resetTokens)
}

func TestResetPassword_Expired(t *testing.T) {
	t.Parallel()

	users := testUsers()
	resets := newFakeResetRepo()
	svc := NewPasswordResetService(zap.NewNop().Sugar(), users, resets, nil, NewAuthService("s"))

	_, err := resets.Create(1, "stale-token", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	require.ErrorIs(t, svc.ResetPassword("stale-token", "new-password"), ErrResetTokenInvalid)
}

func TestResetPassword_TooShort(t *testing.T) {
	t.Parallel()

	svc := NewPasswordResetService(zap.NewNop().Sugar(), testUsers(), newFakeResetRepo(), nil, NewAuthService("s"))

	require.Error(t, svc.ResetPassword("whatever", "abc"))
}
