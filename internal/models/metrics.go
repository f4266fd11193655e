package models

import "time"

// SystemMetrics is a point-in-time summary of runtime counters.
type SystemMetrics struct {
	RequestCount  uint64    `json:"request_count"`
	AvgRequestMs  float64   `json:"avg_request_ms"`
	CacheHitRatio float64   `json:"cache_hit_ratio"`
	RenderCount   uint64    `json:"render_count"`
	Goroutines    int       `json:"goroutines"`
	CollectedAt   time.Time `json:"collected_at"`
}
