package realm

import "time"

const (
	RoleStudent   = "student"
	RoleRecruiter = "recruiter"
)

type Metadata struct {
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
	Company    string `json:"company,omitempty"`
	University string `json:"university,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type Identity struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Metadata Metadata `json:"user_metadata"`
}

// Session is persisted as JSON under the realm storage key.
type Session struct {
	Realm        string    `json:"realm"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	IssuedAt     time.Time `json:"issued_at"`
	Identity     Identity  `json:"user"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventUserUpdated    Event = "USER_UPDATED"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)
