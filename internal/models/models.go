// Package models defines the persisted entities shared by the store,
// registry, and dispatch layers.
package models

import "time"

// Status is the presence value a user shows to their buddies.
type Status string

const (
	StatusOnline    Status = "online"
	StatusAway      Status = "away"
	StatusInvisible Status = "invisible"
	StatusOffline   Status = "offline"
)

// Valid reports whether s is one of the recognized presence values.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusInvisible, StatusOffline:
		return true
	}
	return false
}

// User is an account row. Status and AwayText hold the last durably
// written presence, which outlives the user's sessions.
type User struct {
	ID           string `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	DisplayName  string `db:"display_name" json:"displayName"`
	PasswordHash string `db:"password_hash" json:"-"`
	Status       Status `db:"status" json:"status"`
	AwayText     string `db:"away_text" json:"awayText,omitempty"`
}

// Message is immutable once created except for the delivered and read flags.
type Message struct {
	ID          string     `db:"id" json:"id"`
	SenderID    string     `db:"sender_id" json:"senderId"`
	RecipientID string     `db:"recipient_id" json:"recipientId"`
	Content     string     `db:"content" json:"content"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	Delivered   bool       `db:"delivered" json:"delivered"`
	DeliveredAt *time.Time `db:"delivered_at" json:"deliveredAt,omitempty"`
	Read        bool       `db:"read" json:"read"`
	Auto        bool       `db:"auto_response" json:"autoResponse"`
}

// BuddyEdge is the directed relationship "owner has buddy on their list".
type BuddyEdge struct {
	OwnerID string `db:"owner_id" json:"ownerId"`
	BuddyID string `db:"buddy_id" json:"buddyId"`
}
