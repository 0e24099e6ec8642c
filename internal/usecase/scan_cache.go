package usecase

import (
	"sync"
	"time"

	"SignalBot/internal/domain/models"
)

// ScanResult is the outcome of one scan for a class.
type ScanResult struct {
	Class      models.SignalClass `json:"class"`
	Candidates []models.Candidate `json:"candidates"`
	ScannedAt  time.Time          `json:"scanned_at"`
	// Synthetic is set when Candidates holds only the placeholder produced
	// because nothing cleared the confidence gates.
	Synthetic bool `json:"synthetic"`
	Cached    bool `json:"cached"`
}

// ScanCache keeps the latest ScanResult per class.
type ScanCache struct {
	mu sync.RWMutex
	m  map[models.SignalClass]ScanResult
}

func NewScanCache() *ScanCache {
	return &ScanCache{m: make(map[models.SignalClass]ScanResult)}
}

// Get returns the latest result for class.
func (c *ScanCache) Get(class models.SignalClass) (ScanResult, bool) {
	c.mu.RLock()
	r, ok := c.m[class]
	c.mu.RUnlock()
	return r, ok
}

// Fresh returns the cached result if it is younger than ttl at now and holds
// real candidates.
func (c *ScanCache) Fresh(class models.SignalClass, now time.Time, ttl time.Duration) (ScanResult, bool) {
	r, ok := c.Get(class)
	if !ok || r.Synthetic || len(r.Candidates) == 0 {
		return ScanResult{}, false
	}
	if now.Sub(r.ScannedAt) >= ttl {
		return ScanResult{}, false
	}
	return r, true
}

// Put replaces the entry for r.Class.
func (c *ScanCache) Put(r ScanResult) {
	c.mu.Lock()
	c.m[r.Class] = r
	c.mu.Unlock()
}
