package model

import "time"

// Audit carries the bookkeeping fields shared by every persisted entity:
// creation/update stamps plus soft-delete state. Rows are never physically
// removed; deactivation flips the flag and stamps the time.
type Audit struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
	Active    bool
}

func (a Audit) Deleted() bool {
	return a.DeletedAt != nil
}

func SoftDelete(a *Audit, now time.Time) {
	t := now.UTC()
	a.DeletedAt = &t
	a.Active = false
}

func Restore(a *Audit) {
	a.DeletedAt = nil
	a.Active = true
}
