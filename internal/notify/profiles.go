package notify

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile is the contact record of a platform user.
type Profile struct {
	UserID   string
	FullName string
	Email    string
}

type ProfileRepo struct{ DB *pgxpool.Pool }

func (r *ProfileRepo) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := r.DB.QueryRow(ctx, `SELECT user_id, full_name, email FROM profiles WHERE user_id=$1`, userID).
		Scan(&p.UserID, &p.FullName, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
