package domain

import "time"

// ElapsedMinutes returns the number of whole minutes between t and now.
func ElapsedMinutes(now, t time.Time) int64 {
	return int64(now.Sub(t) / time.Minute)
}

// OlderThan reports whether t lies more than threshold whole minutes before now.
// An age of exactly threshold is not older.
func OlderThan(now, t time.Time, threshold time.Duration) bool {
	return ElapsedMinutes(now, t) > int64(threshold/time.Minute)
}

// Cutoff returns the latest instant that is OlderThan threshold relative to now,
// so stores can select with last_activity <= Cutoff(now, threshold).
func Cutoff(now time.Time, threshold time.Duration) time.Time {
	whole := threshold.Truncate(time.Minute)
	return now.Add(-(whole + time.Minute))
}
