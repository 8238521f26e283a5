package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/roostchat/roost/internal/models"
)

// MessageStore persists direct messages and their delivery/read flags.
type MessageStore interface {
	Create(senderID, recipientID, content string, auto bool) (*models.Message, error)
	GetByID(id string) (*models.Message, error)
	FindUndelivered(userID string) ([]models.Message, error)
	MarkDelivered(ids []string) error
	MarkRead(readerID, counterpartID string) (int64, error)
	CountUnread(userID string) (map[string]int, error)
}

type sqliteMessageStore struct {
	db *sqlx.DB
}

// NewMessages returns a sqlite-backed MessageStore.
func NewMessages(db *sqlx.DB) MessageStore {
	return &sqliteMessageStore{db: db}
}

func (s *sqliteMessageStore) Create(senderID, recipientID, content string, auto bool) (*models.Message, error) {
	msg := &models.Message{
		ID:          xid.New().String(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
		Auto:        auto,
	}
	stmt := `
	INSERT INTO messages (id, sender_id, recipient_id, content, created_at, auto_response)
	VALUES (:id, :sender_id, :recipient_id, :content, :created_at, :auto_response);
	`
	if _, err := s.db.NamedExec(stmt, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *sqliteMessageStore) GetByID(id string) (*models.Message, error) {
	var msg models.Message
	err := s.db.Get(&msg, `SELECT * FROM messages WHERE id = ?;`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &msg, err
}

// FindUndelivered returns the user's backlog ordered by original send time.
func (s *sqliteMessageStore) FindUndelivered(userID string) ([]models.Message, error) {
	var msgs []models.Message
	stmt := `
	SELECT * FROM messages
	WHERE recipient_id = ? AND delivered = 0
	ORDER BY created_at ASC, id ASC;
	`
	err := s.db.Select(&msgs, stmt, userID)
	if err == sql.ErrNoRows {
		return []models.Message{}, nil
	}
	return msgs, err
}

// MarkDelivered flips the delivered flag for the given batch. Rows already
// delivered are left untouched, so a replayed batch never resets the flag.
func (s *sqliteMessageStore) MarkDelivered(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		`UPDATE messages SET delivered = 1, delivered_at = ? WHERE id IN (?) AND delivered = 0;`,
		time.Now().UTC(), ids,
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(s.db.Rebind(query), args...)
	return err
}

// MarkRead marks every message from counterpartID to readerID as read and
// returns how many rows changed.
func (s *sqliteMessageStore) MarkRead(readerID, counterpartID string) (int64, error) {
	res, err := s.db.Exec(
		`UPDATE messages SET read = 1 WHERE recipient_id = ? AND sender_id = ? AND read = 0;`,
		readerID, counterpartID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Debug("MarkRead rows affected unavailable", "error", err)
		return 0, nil
	}
	return n, nil
}

// CountUnread returns unread message counts for userID grouped by sender.
func (s *sqliteMessageStore) CountUnread(userID string) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT sender_id, COUNT(*) FROM messages WHERE recipient_id = ? AND read = 0 GROUP BY sender_id;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sender string
		var count int
		if err := rows.Scan(&sender, &count); err != nil {
			return nil, err
		}
		counts[sender] = count
	}
	return counts, rows.Err()
}
