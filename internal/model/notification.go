package model

import "time"

// Category classifies a notification for sound selection and filtering.
type Category string

const (
	CategoryMessage Category = "message"
	CategoryAlert   Category = "alert"
	CategorySystem  Category = "system"
	CategoryOther   Category = "other"
)

// Severity indicates how a notification should be presented.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is an alert or update pushed to the user by the backend.
type Notification struct {
	// ID is the server-assigned unique identifier.
	ID string `json:"id"`

	// Title is the short notification headline.
	Title string `json:"title"`

	// Message is the full notification text.
	Message string `json:"message"`

	// Category classifies the notification; may be empty.
	Category Category `json:"category,omitempty"`

	// Severity indicates presentation urgency; may be empty.
	Severity Severity `json:"severity,omitempty"`

	// IsRead reports whether the user has seen this notification.
	// It only ever transitions false to true.
	IsRead bool `json:"isRead"`

	// CreatedAt is when the notification was generated.
	CreatedAt time.Time `json:"createdAt"`
}
