package domain

import "time"

// Unspecified is rendered wherever an optional event detail has no value.
const Unspecified = "To be defined"

const displayLayout = "02/01/2006 15:04"

// Timestamp is either pending (not yet assigned, e.g. a server-side purchase
// time before commit) or resolved to a whole number of epoch seconds.
type Timestamp struct {
	seconds  int64
	resolved bool
}

func PendingTimestamp() Timestamp {
	return Timestamp{}
}

func ResolvedTimestamp(epochSeconds int64) Timestamp {
	return Timestamp{seconds: epochSeconds, resolved: true}
}

// TimestampOf resolves t, or returns a pending Timestamp when t is the zero time.
func TimestampOf(t time.Time) Timestamp {
	if t.IsZero() {
		return PendingTimestamp()
	}
	return ResolvedTimestamp(t.Unix())
}

// TimestampOfPtr is TimestampOf for nullable columns.
func TimestampOfPtr(t *time.Time) Timestamp {
	if t == nil {
		return PendingTimestamp()
	}
	return TimestampOf(*t)
}

func (t Timestamp) IsResolved() bool {
	return t.resolved
}

func (t Timestamp) EpochSeconds() (int64, bool) {
	return t.seconds, t.resolved
}

func (t Timestamp) Time() (time.Time, bool) {
	if !t.resolved {
		return time.Time{}, false
	}
	return time.Unix(t.seconds, 0).UTC(), true
}

// Ptr returns the resolved time or nil, for nullable columns.
func (t Timestamp) Ptr() *time.Time {
	v, ok := t.Time()
	if !ok {
		return nil
	}
	return &v
}

// FormatTimestamp renders t for buyers in loc. Pending timestamps render as
// Unspecified. A nil loc means UTC.
func FormatTimestamp(t Timestamp, loc *time.Location) string {
	v, ok := t.Time()
	if !ok {
		return Unspecified
	}
	if loc == nil {
		loc = time.UTC
	}
	return v.In(loc).Format(displayLayout)
}
