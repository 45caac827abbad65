package store

import (
	"fmt"
	"time"
)

// SyncDataType names a data set whose refresh time is tracked.
type SyncDataType string

const (
	SyncSnapshots SyncDataType = "snapshots"
	SyncBars      SyncDataType = "bars"
)

// DefaultStaleAfter is how old a data set may get before it is reported stale.
const DefaultStaleAfter = 7 * 24 * time.Hour

// DataFreshness describes when a data set was last rebuilt.
type DataFreshness struct {
	DataType    SyncDataType  `json:"data_type"`
	LastUpdated time.Time     `json:"last_updated"`
	Age         time.Duration `json:"age"`
	IsFresh     bool          `json:"is_fresh"`
}

// Never reports whether the data set has never been built.
func (f DataFreshness) Never() bool {
	return f.LastUpdated.IsZero()
}

// MarkSynced records now as the refresh time of dataType.
func MarkSynced(tracker SyncTracker, dataType SyncDataType, now time.Time) error {
	if err := tracker.SetLastSync(string(dataType), now); err != nil {
		return fmt.Errorf("failed to mark %s as synced: %w", dataType, err)
	}
	return nil
}

// CheckFreshness compares the recorded refresh time of dataType against
// staleAfter. A data set that was never built is not fresh.
func CheckFreshness(tracker SyncTracker, dataType SyncDataType, staleAfter time.Duration, now time.Time) DataFreshness {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	last := tracker.GetLastSync(string(dataType))
	f := DataFreshness{DataType: dataType, LastUpdated: last}
	if last.IsZero() {
		return f
	}
	f.Age = now.Sub(last)
	f.IsFresh = f.Age < staleAfter
	return f
}

// FormatFreshness returns a human-readable freshness string.
func FormatFreshness(f DataFreshness) string {
	if f.Never() {
		return "never built"
	}

	var age string
	switch {
	case f.Age < time.Minute:
		age = "just now"
	case f.Age < time.Hour:
		age = fmt.Sprintf("%d minutes ago", int(f.Age.Minutes()))
	case f.Age < 24*time.Hour:
		age = fmt.Sprintf("%d hours ago", int(f.Age.Hours()))
	default:
		age = fmt.Sprintf("%d days ago", int(f.Age.Hours()/24))
	}

	if f.IsFresh {
		return "built " + age
	}
	return "stale, built " + age
}
