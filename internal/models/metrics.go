package models

import "time"

// SystemMetrics is a lightweight aggregate exposed by the metrics API in
// addition to the Prometheus endpoint.
type SystemMetrics struct {
	CyclesTotal              uint64    `json:"cycles_total"`
	RecordsChecked           uint64    `json:"records_checked"`
	FetchFailures            uint64    `json:"fetch_failures"`
	NotificationsSent        uint64    `json:"notifications_sent"`
	BookingsSucceeded        uint64    `json:"bookings_succeeded"`
	BookingsFailed           uint64    `json:"bookings_failed"`
	AverageCycleDurationMs   float64   `json:"average_cycle_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
