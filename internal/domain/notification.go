package domain

import "time"

type NotificationKind string

const (
	NotificationNewConnection  NotificationKind = "NEW_CONNECTION"
	NotificationRoleChanged    NotificationKind = "ROLE_CHANGED"
	NotificationNewMessage     NotificationKind = "NEW_MESSAGE"
	NotificationMentorWelcome  NotificationKind = "MENTOR_WELCOME"
	NotificationAnonymousOffer NotificationKind = "ANONYMOUS_INVITATION"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

// Notification is an outbox row: an email rendered at enqueue time and
// delivered after the enqueuing transaction commits.
type Notification struct {
	ID           int32              `json:"id"`
	Kind         NotificationKind   `json:"kind"`
	ConnectionID *int32             `json:"connection_id,omitempty"`
	Recipients   []string           `json:"recipients"`
	Subject      string             `json:"subject"`
	Body         string             `json:"body"`
	Status       NotificationStatus `json:"status"`
	Attempts     int32              `json:"attempts"`
	LastError    string             `json:"last_error,omitempty"`
	CreatedOn    time.Time          `json:"created_on"`
	SentOn       *time.Time         `json:"sent_on,omitempty"`
}
