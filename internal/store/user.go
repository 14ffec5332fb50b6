package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/habits/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var chatID sql.NullString
	err := scanner.Scan(&u.ID, &u.Email, &u.PasswordHash, &chatID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if chatID.Valid {
		u.TgChatID = &chatID.String
	}
	return &u, nil
}

const userCols = `id, email, password_hash, tg_chat_id, created_at, updated_at`

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (s *UserStore) Create(email, passwordHash string, tgChatID *string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, password_hash, tg_chat_id) VALUES (?, ?, ?)`,
		email, passwordHash, nullString(tgChatID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UpdateChatID sets or clears the user's notification channel.
func (s *UserStore) UpdateChatID(id int64, tgChatID *string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET tg_chat_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullString(tgChatID), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update chat id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) SetPassword(id int64, passwordHash string) error {
	_, err := s.db.Exec(
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
