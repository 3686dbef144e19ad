package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferenceCandidate is one competitor ad as returned by the ad library.
type ReferenceCandidate struct {
	AdID     string `json:"ad_id"`
	PageID   string `json:"page_id"`
	PageName string `json:"page_name,omitempty"`
	Text     string `json:"ad_text,omitempty"`
	// DeliveryStart is kept as received; the ranking engine parses it.
	DeliveryStart string `json:"start_date,omitempty"`
	DeliveryEnd   string `json:"end_date,omitempty"`
	// IsActive is nil when the upstream payload carried no activity flag.
	IsActive *bool  `json:"is_active,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type RankedReference struct {
	ReferenceCandidate

	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	Active      bool      `json:"active"`
	WinnerScore float64   `json:"winner_score"`
	DaysRunning int       `json:"days_running"`
	StoragePath string    `json:"storage_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Persisted is set for records that came back from the record store.
	Persisted bool `json:"-"`
}

// HasStoredImage reports whether the reference image was copied into object storage.
func (r RankedReference) HasStoredImage() bool {
	return r.StoragePath != ""
}
