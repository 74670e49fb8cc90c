package types

import "time"

type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Session statuses.
const (
	StatusMounted = "mounted"
	StatusEnded   = "ended"
)

// Session is the host-side record of one mounted component.
type Session struct {
	ID         string    `json:"session_id"`
	Component  string    `json:"component"`
	URL        string    `json:"url"`
	InstanceID string    `json:"component_instance"`
	CreatedAt  time.Time `json:"created_at"`
	Status     string    `json:"status"`

	SurfaceConnected bool       `json:"surface_connected"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}
