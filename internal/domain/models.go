// Package domain defines the persistence models for users, messages,
// interaction logs, appointment slots, and block entries. These types are
// mapped with GORM and form the core data layer of the assistant backend.
package domain

import (
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// AppointmentSlot statuses.
const (
	SlotOpen      = "open"
	SlotBooked    = "booked"
	SlotCancelled = "cancelled"
	SlotCompleted = "completed"
)

// Block kinds. Silent blocks are checked before any processing; spam blocks
// are the result of the automatic rate tracker.
const (
	BlockSilent = "silent"
	BlockSpam   = "spam"
)

// User represents one end user keyed by an opaque identity string
// (e.g. a messaging-platform JID or a web visitor id). Users are created on
// first contact and refreshed on every contact; the core never deletes them.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Identity: opaque external identity; unique, indexed.
//   - DisplayName: last name the user presented; refreshed on contact.
//   - Email / Phone: optional contact details from the inbound channel.
//   - MessageCount: total inbound messages seen from this user.
//   - LastSeen: timestamp of the most recent contact.
type User struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Identity     string    `json:"identity"      gorm:"type:varchar(128);not null;uniqueIndex"`
	DisplayName  string    `json:"display_name"  gorm:"type:varchar(255)"`
	Email        string    `json:"email,omitempty" gorm:"type:varchar(255)"`
	Phone        string    `json:"phone,omitempty" gorm:"type:varchar(64)"`
	MessageCount int       `json:"message_count" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Message represents a single utterance in a user's conversation. Retention
// keeps only the most recent N messages per user; flagged messages are
// preserved separately and re-merged into the model context at read time.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: foreign key to the owning user (indexed with CreatedAt).
//   - Role: "user", "assistant", or "system" (enforced by DB constraint).
//   - Content: full text content of the message.
//   - ExternalID: inbound channel message id, when the webhook supplied one.
//   - IsFlagged: pinned/important marker; flagged rows survive retention.
//   - MediaType: attachment MIME type for media messages.
type Message struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string    `json:"user_id"     gorm:"type:char(36);not null;index:idx_user_msgs,priority:1"`
	Role       string    `json:"role"        gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Content    string    `json:"content"     gorm:"type:text;not null"`
	ExternalID string    `json:"external_id,omitempty" gorm:"type:varchar(128)"`
	IsFlagged  bool      `json:"is_flagged"  gorm:"not null;default:false"`
	MediaType  string    `json:"media_type,omitempty" gorm:"type:varchar(128)"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index:idx_user_msgs,priority:2"`

	// User is the owning conversation partner. Messages are cascade-deleted
	// if the user row is removed (an external admin action).
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// InteractionLog is an append-only audit record of notable user actions.
// UserID is empty for anonymous or security events (e.g. a block applied
// before the user row exists).
type InteractionLog struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string    `json:"user_id,omitempty" gorm:"type:char(36);index"`
	Identity   string    `json:"identity"    gorm:"type:varchar(128);index"`
	ActionType string    `json:"action_type" gorm:"type:varchar(32);not null"`
	Sentiment  string    `json:"sentiment"   gorm:"type:varchar(16);not null;check:sentiment IN ('positive','neutral','negative')"`
	Details    string    `json:"details,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for InteractionLog.
func (InteractionLog) TableName() string { return "interaction_logs" }

// AppointmentSlot is a bookable time slot. Lifecycle:
//
//	open → booked → cancelled
//	open → booked → (completed, implicit once SlotTime passes)
//
// The version column implements optimistic locking: booking succeeds only
// via a conditional update that matches the previously read (status, version)
// pair and increments version. There is no transition out of cancelled.
type AppointmentSlot struct {
	ID          uint       `json:"id"            gorm:"primaryKey;autoIncrement"`
	SlotTime    time.Time  `json:"slot_datetime" gorm:"not null;index"`
	Status      string     `json:"status"        gorm:"type:varchar(16);not null;default:'open';index;check:status IN ('open','booked','cancelled','completed')"`
	UserID      string     `json:"user_id,omitempty" gorm:"type:char(36);index"`
	Identity    string     `json:"identity,omitempty" gorm:"type:varchar(128)"`
	UserName    string     `json:"user_name,omitempty" gorm:"type:varchar(255)"`
	Reason      string     `json:"reason,omitempty" gorm:"type:text"`
	BookedAt    *time.Time `json:"booked_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	Version     int64      `json:"version"       gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for AppointmentSlot.
func (AppointmentSlot) TableName() string { return "appointment_slots" }

// BlockEntry records a blocked identity. Silent and spam blocks share the
// same shape but are checked at different pipeline stages.
type BlockEntry struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	Identity  string    `json:"identity" gorm:"type:varchar(128);not null;uniqueIndex:ux_block_identity_kind"`
	Kind      string    `json:"kind"     gorm:"type:varchar(16);not null;uniqueIndex:ux_block_identity_kind;check:kind IN ('silent','spam')"`
	Reason    string    `json:"reason"   gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for BlockEntry.
func (BlockEntry) TableName() string { return "block_entries" }
