package timehelper

import "time"

// GetTodaysDateString formats the current date as 'YYYY-MM-DD'.
func GetTodaysDateString() string {
	return time.Now().Format("2006-01-02")
}

// Millis is the wire representation of a timestamp.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Expired reports whether something issued at issuedAt (ms) has outlived ttl.
// A zero ttl never expires.
func Expired(issuedAt int64, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(time.UnixMilli(issuedAt)) > ttl
}
