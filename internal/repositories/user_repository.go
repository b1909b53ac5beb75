package repositories

import (
	"database/sql"
	"errors"
	"time"

	"kakachat/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(user *models.User) error
	GetByID(id int64) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	List(excludeID int64) ([]*models.User, error)
	SetOnline(id int64, online bool) error
	UpdatePassword(id int64, passwordHash string) error

	// refresh helpers
	UpdateRefresh(userID int64, token string, expiresAt time.Time) error
	RotateRefresh(oldToken, newToken string, newExpiresAt time.Time) (*models.User, error)
	ClearRefresh(userID int64) error
	GetByRefreshToken(token string) (*models.User, error)
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

func (r *userRepository) Create(user *models.User) error {
	const q = `
		INSERT INTO users (name, email, image, password_hash, is_online, refresh_token, refresh_expires_at, refresh_revoked)
		VALUES ($1, $2, $3, $4, $5, NULL, NULL, FALSE)
		RETURNING id, created_at
	`
	return r.DB.QueryRow(q,
		user.Name,
		user.Email,
		user.Image,
		user.PasswordHash,
		user.IsOnline,
	).Scan(&user.ID, &user.CreatedAt)
}

func (r *userRepository) scanOne(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var (
		rt  sql.NullString
		rte sql.NullTime
		rr  sql.NullBool
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.PasswordHash, &u.IsOnline, &rt, &rte, &rr, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if rt.Valid {
		u.RefreshToken = &rt.String
	}
	if rte.Valid {
		u.RefreshExpiresAt = &rte.Time
	}
	u.RefreshRevoked = rr.Valid && rr.Bool
	return u, nil
}

const userColumns = `id, name, email, image, password_hash, is_online, refresh_token, refresh_expires_at, refresh_revoked, created_at`

func (r *userRepository) GetByID(id int64) (*models.User, error) {
	return r.scanOne(r.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	return r.scanOne(r.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *userRepository) GetByRefreshToken(token string) (*models.User, error) {
	return r.scanOne(r.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE refresh_token = $1`, token))
}

func (r *userRepository) List(excludeID int64) ([]*models.User, error) {
	const q = `
		SELECT id, name, email, image, is_online, created_at
		FROM users
		WHERE id <> $1
		ORDER BY name, id
	`
	rows, err := r.DB.Query(q, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.IsOnline, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepository) SetOnline(id int64, online bool) error {
	res, err := r.DB.Exec(`UPDATE users SET is_online = $2 WHERE id = $1`, id, online)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) UpdatePassword(id int64, passwordHash string) error {
	res, err := r.DB.Exec(`UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) UpdateRefresh(userID int64, token string, expiresAt time.Time) error {
	const q = `
		UPDATE users
		SET refresh_token = $2, refresh_expires_at = $3, refresh_revoked = FALSE
		WHERE id = $1
	`
	res, err := r.DB.Exec(q, userID, token, expiresAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) RotateRefresh(oldToken, newToken string, newExpiresAt time.Time) (*models.User, error) {
	const q = `
		UPDATE users
		SET refresh_token = $2, refresh_expires_at = $3, refresh_revoked = FALSE
		WHERE refresh_token = $1 AND NOT refresh_revoked
		RETURNING ` + userColumns
	return r.scanOne(r.DB.QueryRow(q, oldToken, newToken, newExpiresAt))
}

func (r *userRepository) ClearRefresh(userID int64) error {
	_, err := r.DB.Exec(`UPDATE users SET refresh_token = NULL, refresh_expires_at = NULL WHERE id = $1`, userID)
	return err
}
