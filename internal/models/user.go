package models

import "time"

// UserAccount carries the per-user daily credit state. DailyCredits is the
// remaining allowance; CreditsResetAt is the UTC instant at which the
// balance snaps back to the full quota on next read. Mutated only by the
// credit ledger, exactly once per issue, never negative.
type UserAccount struct {
	ID             string     `json:"id" badgerhold:"key"`
	Email          string     `json:"email"`
	DailyCredits   int        `json:"daily_credits"`
	CreditsResetAt *time.Time `json:"credits_reset_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
