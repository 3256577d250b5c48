package models

import "go.uber.org/atomic"

// Metrics 定義指標統計
type Metrics struct {
	Hits          *atomic.Int64
	Misses        *atomic.Int64
	StoreErrors   *atomic.Int64
	LocalHits     *atomic.Int64
	FilterRejects *atomic.Int64
}

// Snapshot is a point-in-time copy of Metrics.
type Snapshot struct {
	Hits          int64
	Misses        int64
	StoreErrors   int64
	LocalHits     int64
	FilterRejects int64
}

// NewMetrics 創建新的 Metrics 實例
func NewMetrics() *Metrics {
	return &Metrics{
		Hits:          atomic.NewInt64(0),
		Misses:        atomic.NewInt64(0),
		StoreErrors:   atomic.NewInt64(0),
		LocalHits:     atomic.NewInt64(0),
		FilterRejects: atomic.NewInt64(0),
	}
}

// Snapshot 讀取目前的統計值
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Hits:          m.Hits.Load(),
		Misses:        m.Misses.Load(),
		StoreErrors:   m.StoreErrors.Load(),
		LocalHits:     m.LocalHits.Load(),
		FilterRejects: m.FilterRejects.Load(),
	}
}
