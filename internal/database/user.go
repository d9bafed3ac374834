package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/crowdpick/internal/auth"
	"github.com/jason-s-yu/crowdpick/internal/models"
)

// ErrInvalidCredentials is returned by AuthenticateUser for a bad email or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

const userColumns = `id, COALESCE(email, ''), password, username, is_ephemeral, is_admin, coins, best_score`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Password, &u.Username,
		&u.IsEphemeral, &u.IsAdmin, &u.Coins, &u.BestScore,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts user, assigning an id when missing and hashing a non-empty password.
func CreateUser(ctx context.Context, user *models.User) error {
	if DB == nil {
		return ErrNotConnected
	}
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	if user.Password != "" {
		hash, err := auth.HashPassword(user.Password, auth.DefaultParams)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = hash
	}

	q := `INSERT INTO users (id, email, password, username, is_ephemeral, is_admin)
	      VALUES ($1, $2, $3, $4, $5, $6)`

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Email, user.Password, user.Username,
			user.IsEphemeral, user.IsAdmin,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if DB == nil {
		return nil, ErrNotConnected
	}
	return scanUser(DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if DB == nil {
		return nil, ErrNotConnected
	}
	return scanUser(DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

// AuthenticateUser checks the credentials and returns a signed token for the user.
func AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	user, err := GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("user lookup: %w", err)
	}
	if user.IsEphemeral || user.Password == "" {
		return "", ErrInvalidCredentials
	}

	match, err := auth.VerifyPassword(password, user.Password)
	if err != nil || !match {
		return "", ErrInvalidCredentials
	}

	token, err := auth.CreateJWT(user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to create jwt: %w", err)
	}
	return token, nil
}
