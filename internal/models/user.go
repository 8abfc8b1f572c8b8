package models

import "time"

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID              int64      `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone,omitempty"`
	DisplayName     string     `json:"display_name"`
	Role            string     `json:"role"`
	PasswordHash    string     `json:"-"`
	StripeAccountID string     `json:"stripe_account_id,omitempty"`
	PayoutsEnabled  bool       `json:"payouts_enabled"`
	DigestOptIn     bool       `json:"digest_opt_in"`
	LastDigestAt    *time.Time `json:"last_digest_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// IsClient reports whether the user posts bounties.
func (u User) IsClient() bool { return u.Role == RoleClient || u.Role == RoleAdmin }

// IsFreelancer reports whether the user applies to bounties.
func (u User) IsFreelancer() bool { return u.Role == RoleFreelancer }

// Name returns the display name, falling back to the username.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
