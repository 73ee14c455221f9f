package models

import "time"

// MetricsSnapshot is a point-in-time summary of service activity.
type MetricsSnapshot struct {
	RequestsTotal            uint64            `json:"requestsTotal"`
	AverageRequestDurationMs float64           `json:"averageRequestDurationMs"`
	SolvesTotal              uint64            `json:"solvesTotal"`
	SolvesByOutcome          map[string]uint64 `json:"solvesByOutcome"`
	AverageSolveDurationMs   float64           `json:"averageSolveDurationMs"`
	NodesExploredTotal       uint64            `json:"nodesExploredTotal"`
	CacheHitRatio            float64           `json:"cacheHitRatio"`
	CacheHits                uint64            `json:"cacheHits"`
	CacheMisses              uint64            `json:"cacheMisses"`
	DBQueryCount             uint64            `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64           `json:"averageDbQueryDurationMs"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generatedAt"`
}
