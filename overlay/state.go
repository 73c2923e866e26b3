package overlay

import (
	"sync"
	"time"
)

// Snapshot is one atomically placed entity batch
type Snapshot struct {
	Sequence   uint64         `json:"sequence"`
	Placements []PlacedEntity `json:"placements"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// BatchListener is notified after each applied batch
type BatchListener func(s Snapshot)

// PlacementTracker holds the latest placed snapshot for HTTP and MQTT consumers.
// A batch is placed and stored under one lock, so readers never observe a mix
// of two batches.
type PlacementTracker struct {
	mu        sync.RWMutex
	placer    *Placer
	metrics   PolygonMetrics
	current   Snapshot
	listeners []BatchListener
}

// NewPlacementTracker creates a tracker for the placer's overlay and computes
// the overlay metrics once.
func NewPlacementTracker(placer *Placer) (*PlacementTracker, error) {
	m, err := BoundsMetrics(placer.Projector().Bounds)
	if err != nil {
		return nil, err
	}
	return &PlacementTracker{
		placer:  placer,
		metrics: m,
		current: Snapshot{Placements: make([]PlacedEntity, 0)},
	}, nil
}

// OnBatch registers a listener called after every successful Apply
func (pt *PlacementTracker) OnBatch(l BatchListener) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.listeners = append(pt.listeners, l)
}

// Apply places a batch and makes it the current snapshot. On error the
// previous snapshot stays current.
func (pt *PlacementTracker) Apply(entities []Entity) (Snapshot, error) {
	pt.mu.Lock()
	placed, err := pt.placer.Place(entities)
	if err != nil {
		pt.mu.Unlock()
		return Snapshot{}, err
	}
	pt.current = Snapshot{
		Sequence:   pt.current.Sequence + 1,
		Placements: placed,
		UpdatedAt:  time.Now(),
	}
	snap := pt.copyCurrent()
	listeners := append([]BatchListener(nil), pt.listeners...)
	pt.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return snap, nil
}

// Snapshot returns a copy of the current snapshot
func (pt *PlacementTracker) Snapshot() Snapshot {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.copyCurrent()
}

// Metrics returns the overlay area and perimeter
func (pt *PlacementTracker) Metrics() PolygonMetrics {
	return pt.metrics
}

// Projector returns the projector behind the tracker
func (pt *PlacementTracker) Projector() *Projector {
	return pt.placer.Projector()
}

func (pt *PlacementTracker) copyCurrent() Snapshot {
	s := pt.current
	s.Placements = append(make([]PlacedEntity, 0, len(pt.current.Placements)), pt.current.Placements...)
	return s
}
