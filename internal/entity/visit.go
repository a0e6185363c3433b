package entity

import "time"

// VisitEvent is the raw data captured on the redirect path. It is handed to
// the analytics recorder as is; everything derived from it is computed off
// the request path.
type VisitEvent struct {
	Code      string    `json:"code"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent"`
	Referer   string    `json:"referer,omitempty"`
	VisitedAt time.Time `json:"visited_at"`
	// IPHash and DeviceFingerprint replace IP once the event has been
	// pseudonymised for transport outside the process.
	IPHash            string `json:"ip_hash,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
}

// Visit is a single append-only row of the visit log.
type Visit struct {
	ID                int64
	Code              string
	VisitedAt         time.Time
	DeviceFingerprint string
	OSFamily          string
	DeviceType        string
	Browser           string
	IPHash            string
	Referer           string
}

// UniqueDevice marks the first visit of a device fingerprint to a code.
type UniqueDevice struct {
	Code              string
	DeviceFingerprint string
	FirstSeenAt       time.Time
}

// UniqueOS marks the first visit from an operating system family to a code.
type UniqueOS struct {
	Code        string
	OSFamily    string
	FirstSeenAt time.Time
}

// Stats is the aggregated analytics read model of a short code.
type Stats struct {
	Code           string
	TotalVisits    int64
	UniqueDevices  int64
	UniqueOS       int64
	VisitsByOS     map[string]int64
	VisitsByDevice map[string]int64
	LastVisitAt    *time.Time
}
