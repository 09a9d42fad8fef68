package models

// Mode is a conversation's current interaction type.
type Mode string

const (
	ModeText  Mode = "text"
	ModeImage Mode = "image"
)

// Toggled returns the other mode of the two-state machine.
func (m Mode) Toggled() Mode {
	if m == ModeImage {
		return ModeText
	}
	return ModeImage
}

// User mirrors a row of identified_user. Written once on first
// interaction, never updated afterwards.
type User struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AllowedUser mirrors a row of allowed_users. Existence of the row is
// the sole authorization predicate for non-admin image generation.
type AllowedUser struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// UserCredit mirrors a row of user_credit. Balance is cumulative spend,
// not remaining credit; it only grows except for administrative
// set/reset and the compensating refund after a failed generation.
type UserCredit struct {
	UserID          int64   `json:"user_id"`
	Balance         float64 `json:"balance"`
	ImagesGenerated int     `json:"images_generated"`
}
