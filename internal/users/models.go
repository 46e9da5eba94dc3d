package users

import "time"

type WebUser struct {
	ID           int64     `db:"id" json:"id"`
	Login        string    `db:"login" json:"login"`
	Email        *string   `db:"email" json:"email,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"-" json:"createdAt"`
	UpdatedAt    time.Time `db:"-" json:"updatedAt"`
}

type userRow struct {
	ID           int64   `db:"id"`
	Login        string  `db:"login"`
	Email        *string `db:"email"`
	PasswordHash string  `db:"password_hash"`
	CreatedTs    int64   `db:"created_ts"`
	UpdatedTs    int64   `db:"updated_ts"`
}

func (r userRow) toUser() *WebUser {
	return &WebUser{
		ID:           r.ID,
		Login:        r.Login,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    time.UnixMilli(r.CreatedTs).UTC(),
		UpdatedAt:    time.UnixMilli(r.UpdatedTs).UTC(),
	}
}
