package ratelimit

import (
	"context"
	"time"
)

// Class is the kind of credential an identity was derived from.
type Class string

const (
	ClassUser   Class = "user"
	ClassAPIKey Class = "apikey"
	ClassIP     Class = "ip"
)

// Identity is the subject a quota is charged to.
type Identity struct {
	Class Class
	Key   string
}

func (id Identity) String() string {
	return string(id.Class) + ":" + id.Key
}

// Limit allows Requests per Window.
type Limit struct {
	Requests int64
	Window   time.Duration
}

// Decision is the result of admitting a single request.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration // zero when allowed
	ResetAt    time.Time
}

// Limiter counts a request against the window of id.
type Limiter interface {
	Admit(ctx context.Context, id Identity, limit Limit, now time.Time) (Decision, error)
}

// Policy maps identity classes to their limits. Classes without an entry
// fall back to the ip limit.
type Policy map[Class]Limit

// DefaultPolicy gives authenticated callers higher ceilings than anonymous
// ones.
func DefaultPolicy() Policy {
	return Policy{
		ClassUser:   {Requests: 300, Window: time.Minute},
		ClassAPIKey: {Requests: 1000, Window: time.Minute},
		ClassIP:     {Requests: 60, Window: time.Minute},
	}
}

func (p Policy) LimitFor(class Class) Limit {
	if l, ok := p[class]; ok {
		return l
	}
	return p[ClassIP]
}

func decide(count int64, start time.Time, limit Limit, now time.Time) Decision {
	resetAt := start.Add(limit.Window)

	if count > limit.Requests {
		retryAfter := resetAt.Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Millisecond
		}

		return Decision{
			Allowed:    false,
			Limit:      limit.Requests,
			Remaining:  0,
			RetryAfter: retryAfter,
			ResetAt:    resetAt,
		}
	}

	return Decision{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - count,
		ResetAt:   resetAt,
	}
}
