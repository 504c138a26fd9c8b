package embcache

import "time"

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Requests     int64
	Hits         int64
	Misses       int64
	Errors       int64
	HitRate      float64 // hits / requests, 0 when idle
	SavingsUSD   float64
	SizeBytes    int64
	Entries      int
	TTL          time.Duration
	MaxSizeBytes int64
}

// SizeMB reports SizeBytes in mebibytes.
func (s Stats) SizeMB() float64 {
	return float64(s.SizeBytes) / (1 << 20)
}
