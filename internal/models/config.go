package models

import "time"

// ConfigSnapshot is one committed version of the operational parameters.
// Snapshots are immutable once committed; readers always see a whole
// version, never a partially applied update.
type ConfigSnapshot struct {
	Version               int64     `json:"version"`
	PriceFiatMinorUnits   int64     `json:"priceFiatMinorUnits"`
	MinUnlockFiatMinor    int64     `json:"minUnlockFiatMinorUnits"`
	PayoutAccounts        []string  `json:"payoutAccounts"`
	CommunityInviteLink   string    `json:"communityInviteLink"`
	DefaultAPYBasisPoints int64     `json:"defaultApyBasisPoints"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// Clone returns a copy whose payout list does not alias the original.
func (c *ConfigSnapshot) Clone() *ConfigSnapshot {
	clone := *c
	clone.PayoutAccounts = append([]string(nil), c.PayoutAccounts...)
	return &clone
}

// ConfigPatch carries the fields an admin wants to change. Nil fields
// are left at their current values.
type ConfigPatch struct {
	PriceFiatMinorUnits   *int64    `json:"priceFiatMinorUnits,omitempty"`
	MinUnlockFiatMinor    *int64    `json:"minUnlockFiatMinorUnits,omitempty"`
	PayoutAccounts        *[]string `json:"payoutAccounts,omitempty"`
	CommunityInviteLink   *string   `json:"communityInviteLink,omitempty"`
	DefaultAPYBasisPoints *int64    `json:"defaultApyBasisPoints,omitempty"`
}
