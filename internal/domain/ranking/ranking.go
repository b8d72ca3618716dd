// Package ranking defines the leaderboard entry types shared by the query
// layer, the Redis cache, and the pinned-message renderer.
package ranking

// UnknownMemberName is shown when a ranked member's display name cannot be
// resolved anymore.
const UnknownMemberName = "unknown member"

// Board identifies one of the leaderboards.
type Board string

const (
	BoardExperience Board = "experience"
	BoardStreak     Board = "streak"
	BoardAttendance Board = "attendance"
)

// Entry is one leaderboard row. Score is board-specific: cumulative XP,
// current streak length, or lifetime attendance count.
type Entry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Level       int    `json:"level"` // populated on the experience board
	TierEmoji   string `json:"tier_emoji,omitempty"`
	TierName    string `json:"tier_name,omitempty"`
}

// Leaderboard is a computed board snapshot.
type Leaderboard struct {
	Board   Board   `json:"board"`
	Entries []Entry `json:"entries"`
}

// Name returns the display name or the unknown-member fallback.
func (e Entry) Name() string {
	if e.DisplayName == "" {
		return UnknownMemberName
	}
	return e.DisplayName
}
