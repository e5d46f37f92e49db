package model

import (
	"errors"
	"fmt"
	"time"
)

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationSuccess, NotificationError, NotificationInfo,
		NotificationWarning, NotificationLike, NotificationComment:
		return true
	}
	return false
}

// Social reports whether t describes activity from another user.
func (t NotificationType) Social() bool {
	return t == NotificationLike || t == NotificationComment
}

// Notification is a transient, user-facing message shown as a toast and kept
// in the local notification history.
type Notification struct {
	// ID is generated locally and unique within a store's lifetime.
	ID string `json:"id"`

	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`

	// Timestamp is when the notification was created.
	Timestamp time.Time `json:"timestamp"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// DurationMS is how long the toast stays visible, in milliseconds.
	// Zero means it stays until dismissed.
	DurationMS int64 `json:"duration,omitempty"`

	// Payload for like/comment notifications.
	MemeID        string `json:"memeId,omitempty"`
	MemeThumbnail string `json:"memeThumbnail,omitempty"`
	UserID        string `json:"userId,omitempty"`
	UserName      string `json:"userName,omitempty"`

	// Action runs when the notification is clicked. Never persisted.
	Action func() `json:"-"`
}

// Lifetime returns the display duration.
func (n Notification) Lifetime() time.Duration {
	return time.Duration(n.DurationMS) * time.Millisecond
}

// Sticky reports whether the notification stays until explicitly dismissed.
func (n Notification) Sticky() bool {
	return n.DurationMS <= 0
}

// ExpiresAt returns when the toast is due for automatic removal. The zero
// time is returned for sticky notifications.
func (n Notification) ExpiresAt() time.Time {
	if n.Sticky() {
		return time.Time{}
	}
	return n.Timestamp.Add(n.Lifetime())
}

// DefaultSenderName is shown when a backend notification record carries no
// originating user name.
const DefaultSenderName = "Someone"

// ErrUnsupportedRecord is returned by NotificationRecord.Validate for records
// the client does not know how to display.
var ErrUnsupportedRecord = errors.New("unsupported notification record")

// NotificationRecord is a row of the backend "notifications" collection,
// addressed to a single user.
type NotificationRecord struct {
	ID   ID               `json:"id"`
	Type NotificationType `json:"type"`

	// User is the recipient.
	User ID   `json:"user"`
	Read bool `json:"read"`

	// MemeID references the meme the activity happened on.
	MemeID ID `json:"meme_id"`

	// MemeImage is the asset id of the meme picture. Optional; no thumbnail
	// is shown when empty.
	MemeImage ID `json:"meme_image"`

	// FromUserID and FromUserName describe who liked or commented. The name
	// falls back to DefaultSenderName.
	FromUserID   ID     `json:"from_user_id"`
	FromUserName string `json:"from_user_name"`

	// DateCreated is kept as sent; Directus omits the zone for dateTime
	// fields.
	DateCreated string `json:"date_created"`
}

// Sender returns the display name of the originating user.
func (r NotificationRecord) Sender() string {
	if r.FromUserName == "" {
		return DefaultSenderName
	}
	return r.FromUserName
}

// Validate checks the record at the API boundary. A record without an id
// cannot be acknowledged and is rejected outright; a record of a type other
// than like/comment wraps ErrUnsupportedRecord.
func (r NotificationRecord) Validate() error {
	if r.ID.IsZero() {
		return errors.New("notification record without id")
	}
	if !r.Type.Social() {
		return fmt.Errorf("%w: type %q", ErrUnsupportedRecord, r.Type)
	}
	return nil
}
