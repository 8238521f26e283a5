package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/roostchat/roost/internal/models"
)

var selectUsers = `SELECT u.* FROM users u`

// UserStore persists accounts and their durable presence state.
type UserStore interface {
	Create(username, displayName, passwordHash string) (*models.User, error)
	GetByID(id string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	UpdateStatus(userID string, status models.Status, awayText string) error
	GetStatus(userID string) (models.Status, string, error)
}

type sqliteUserStore struct {
	db *sqlx.DB
}

// NewUsers returns a sqlite-backed UserStore.
func NewUsers(db *sqlx.DB) UserStore {
	return &sqliteUserStore{db: db}
}

func (s *sqliteUserStore) Create(username, displayName, passwordHash string) (*models.User, error) {
	user := &models.User{
		ID:           xid.New().String(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Status:       models.StatusOffline,
	}
	stmt := `
	INSERT INTO users (id, username, display_name, password_hash, status, away_text)
	VALUES (:id, :username, :display_name, :password_hash, :status, :away_text);
	`
	if _, err := s.db.NamedExec(stmt, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *sqliteUserStore) GetByID(id string) (*models.User, error) {
	var user models.User
	err := s.db.Get(&user, selectUsers+" WHERE u.id = ?;", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &user, err
}

func (s *sqliteUserStore) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := s.db.Get(&user, selectUsers+" WHERE u.username = ?;", username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &user, err
}

// UpdateStatus writes the durable presence value. Away-text is stored as
// given; callers clear it when leaving the away state.
func (s *sqliteUserStore) UpdateStatus(userID string, status models.Status, awayText string) error {
	_, err := s.db.Exec(
		`UPDATE users SET status = ?, away_text = ? WHERE id = ?;`,
		string(status), awayText, userID,
	)
	return err
}

func (s *sqliteUserStore) GetStatus(userID string) (models.Status, string, error) {
	var row struct {
		Status   string `db:"status"`
		AwayText string `db:"away_text"`
	}
	err := s.db.Get(&row, `SELECT status, away_text FROM users WHERE id = ?;`, userID)
	if err == sql.ErrNoRows {
		return models.StatusOffline, "", nil
	}
	if err != nil {
		return models.StatusOffline, "", err
	}
	return models.Status(row.Status), row.AwayText, nil
}
