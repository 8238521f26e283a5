package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// BuddyStore persists the directed buddy edges used to scope presence
// fan-out. The core only reads; Add and Remove exist for the account
// endpoints and tests.
type BuddyStore interface {
	Add(ownerID, buddyID string) error
	Remove(ownerID, buddyID string) error
	BuddiesOf(ownerID string) ([]string, error)
	FindUsersWhoHaveBuddy(buddyID string) ([]string, error)
}

type sqliteBuddyStore struct {
	db *sqlx.DB
}

// NewBuddies returns a sqlite-backed BuddyStore.
func NewBuddies(db *sqlx.DB) BuddyStore {
	return &sqliteBuddyStore{db: db}
}

func (s *sqliteBuddyStore) Add(ownerID, buddyID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO buddies (owner_id, buddy_id) VALUES (?, ?);`,
		ownerID, buddyID,
	)
	return err
}

func (s *sqliteBuddyStore) Remove(ownerID, buddyID string) error {
	_, err := s.db.Exec(
		`DELETE FROM buddies WHERE owner_id = ? AND buddy_id = ?;`,
		ownerID, buddyID,
	)
	return err
}

// BuddiesOf returns the ids on ownerID's buddy list.
func (s *sqliteBuddyStore) BuddiesOf(ownerID string) ([]string, error) {
	var ids []string
	err := s.db.Select(&ids, `SELECT buddy_id FROM buddies WHERE owner_id = ? ORDER BY buddy_id;`, ownerID)
	if err == sql.ErrNoRows {
		return []string{}, nil
	}
	return ids, err
}

// FindUsersWhoHaveBuddy returns the ids of users holding buddyID on their
// list, the audience for buddyID's presence changes.
func (s *sqliteBuddyStore) FindUsersWhoHaveBuddy(buddyID string) ([]string, error) {
	var ids []string
	err := s.db.Select(&ids, `SELECT owner_id FROM buddies WHERE buddy_id = ? ORDER BY owner_id;`, buddyID)
	if err == sql.ErrNoRows {
		return []string{}, nil
	}
	return ids, err
}
