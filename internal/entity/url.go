// Package entity defines the entities and errors shared by the shortener core.
// It includes the ShortURL record, the visit events captured for analytics and
// the error taxonomy every layer maps its failures onto.
package entity

import "time"

// ShortURL represents a short code and the target it redirects to.
type ShortURL struct {
	ID        int64      // ID is the unique identifier of the record in the database.
	Code      string     // Code is the short code appended to the service base URL.
	TargetURL string     // TargetURL is the absolute URL the code redirects to.
	OwnerID   string     // OwnerID is the identity that created the record.
	CreatedAt time.Time  // CreatedAt is the timestamp when the record was created.
	ExpiresAt *time.Time // ExpiresAt is the optional soft-expiry timestamp.
}

// IsExpired reports whether the record is past its expiry at the given time.
// An expired record is treated as absent by lookups even though the row may
// still exist and occupy the code namespace.
func (u *ShortURL) IsExpired(now time.Time) bool {
	return u.ExpiresAt != nil && !now.Before(*u.ExpiresAt)
}
