// Package booking implements the class-capacity and entitlement
// allocation engine: deciding whether a member may occupy a seat in a
// session occurrence, which entitlement pays for it, and how
// cancellation and waitlist promotion behave.  The package is pure
// logic over the Store interfaces; persistence lives in
// internal/repository.
package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// InstanceID identifies one concrete calendar occurrence of a class
// session.  Two InstanceIDs are equal when they name the same session
// and the same calendar date, regardless of how either was produced.
// The zero value means "no instance" and is used for one-time sessions.
type InstanceID struct {
	SessionID uint64
	Date      time.Time
}

// NewInstanceID builds an InstanceID for the given session and
// occurrence date.  The date is normalized to midnight UTC so that
// equality never depends on the clock component or location of the
// input.
func NewInstanceID(sessionID uint64, date time.Time) InstanceID {
	return InstanceID{
		SessionID: sessionID,
		Date:      time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// ParseInstanceKey parses the stable string form produced by Key.
func ParseInstanceKey(s string) (InstanceID, error) {
	idx := strings.IndexByte(s, ':')
	if idx <= 0 {
		return InstanceID{}, fmt.Errorf("malformed instance key %q", s)
	}
	sessionID, err := strconv.ParseUint(s[:idx], 10, 64)
	if err != nil || sessionID == 0 {
		return InstanceID{}, fmt.Errorf("malformed instance key %q", s)
	}
	date, err := time.Parse(dateLayout, s[idx+1:])
	if err != nil {
		return InstanceID{}, fmt.Errorf("malformed instance key %q", s)
	}
	return NewInstanceID(sessionID, date), nil
}

// IsZero reports whether the identity is unset (one-time session).
func (id InstanceID) IsZero() bool {
	return id.SessionID == 0
}

// Key returns the stable persisted form "<session-id>:<YYYY-MM-DD>".
// The zero InstanceID yields the empty string, which is how one-time
// session records are stored.
func (id InstanceID) Key() string {
	if id.IsZero() {
		return ""
	}
	return strconv.FormatUint(id.SessionID, 10) + ":" + id.Date.Format(dateLayout)
}

// Equal reports identity equality.
func (id InstanceID) Equal(other InstanceID) bool {
	return id.SessionID == other.SessionID && id.Date.Equal(other.Date)
}
