package activity

import (
	"encoding/json"
	"time"
)

// Entry is one activity_logs row. Entries are owned by the system and
// read-only to API callers; they are removed only when a cascading principal
// deletion sweeps them up.
type Entry struct {
	ID          int64           `json:"id"`
	Action      string          `json:"action"`
	PerformedBy int64           `json:"performed_by"`
	Performer   Performer       `json:"performer"`
	TargetType  string          `json:"target_type"`
	TargetID    int64           `json:"target_id"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Performer is the principal that performed the recorded action.
type Performer struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Filter narrows an activity listing.
type Filter struct {
	// ExcludeAdminPerformers hides entries performed by ADMIN principals;
	// set for MODERATOR viewers.
	ExcludeAdminPerformers bool
	Limit                  int
	Offset                 int
}
