// internal/app/system/guestlimit/guestlimit.go

// Package guestlimit computes whether an identity is subject to the guest
// tournament quota and how close it is to the cap.
package guestlimit

// MaxGuestTournaments is the number of active tournaments a guest identity
// may own. Policy constant, not derived.
const MaxGuestTournaments = 3

// Status describes an identity's position against the guest quota.
type Status struct {
	IsLimited   bool
	Limit       int
	Used        int
	Remaining   int
	CanCreate   bool
	IsNearLimit bool
	IsAtLimit   bool
}

// Tracker evaluates the guest quota. Enabled is the global feature flag; when
// false, limiting is off for everyone and no other computation happens.
type Tracker struct {
	Enabled bool
}

// New returns a Tracker honoring the global limiting flag.
func New(enabled bool) *Tracker {
	return &Tracker{Enabled: enabled}
}

// Evaluate computes the quota status for an identity owning `used` active
// (non-deleted) tournaments. The feature flag short-circuits first; permanent
// identities are never limited.
func (t *Tracker) Evaluate(isGuest bool, used int) Status {
	if !t.Enabled || !isGuest {
		return Status{
			IsLimited: false,
			Limit:     0,
			Used:      used,
			Remaining: -1,
			CanCreate: true,
		}
	}

	if used < 0 {
		used = 0
	}
	remaining := MaxGuestTournaments - used
	if remaining < 0 {
		remaining = 0
	}

	return Status{
		IsLimited:   true,
		Limit:       MaxGuestTournaments,
		Used:        used,
		Remaining:   remaining,
		CanCreate:   remaining > 0,
		IsNearLimit: remaining <= 1,
		IsAtLimit:   remaining == 0,
	}
}
