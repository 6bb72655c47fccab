// ABOUTME: NTP offset estimation with drift compensation
// ABOUTME: Tracks both offset AND drift so the local clock stays true between syncs
package timesource

import (
	"log"
	"sync"
	"time"
)

// ClockSync estimates the offset between the local clock and network time
type ClockSync struct {
	mu             sync.RWMutex
	offset         int64   // Current offset in microseconds (network - local)
	drift          float64 // Clock drift rate (dimensionless: μs/μs)
	rawOffset      int64   // Latest raw offset measurement
	rtt            int64   // Latest round-trip time
	quality        Quality
	lastSync       time.Time
	lastSyncMicros int64 // Local time (μs) when offset/drift were last updated
	sampleCount    int
	rejected       int // Consecutive residual rejections
	smoothingRate  float64
	limits         SyncLimits
	now            func() time.Time
}

// SyncLimits bounds which samples are accepted and when sync is considered lost
type SyncLimits struct {
	MaxRTT      time.Duration // Samples slower than this are discarded
	MaxResidual time.Duration // Larger prediction errors are treated as outliers
	StaleAfter  time.Duration // Quality drops to Lost after this long without a sample
	ReseedAfter int           // Consecutive outliers before re-seeding from scratch
}

// DefaultSyncLimits suits internet NTP servers
func DefaultSyncLimits() SyncLimits {
	return SyncLimits{
		MaxRTT:      500 * time.Millisecond,
		MaxResidual: 50 * time.Millisecond,
		StaleAfter:  24 * time.Hour,
		ReseedAfter: 3,
	}
}

// Quality represents sync quality
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "lost"
	}
}

// NewClockSync creates a new clock synchronizer
func NewClockSync(limits SyncLimits) *ClockSync {
	return &ClockSync{
		smoothingRate: 0.1, // 10% weight to new samples
		quality:       QualityLost,
		drift:         0.0, // Start assuming no drift
		limits:        limits,
		now:           time.Now,
	}
}

// ProcessSample folds one offset measurement into the estimate. at is the
// local time (μs) the measurement completed.
func (cs *ClockSync) ProcessSample(measuredOffset, rtt, at int64) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rtt = rtt
	cs.rawOffset = measuredOffset
	cs.lastSync = cs.now()

	// Discard samples with high RTT (network congestion)
	if cs.limits.MaxRTT > 0 && rtt > cs.limits.MaxRTT.Microseconds() {
		log.Printf("Discarding sync sample: high RTT %dμs", rtt)
		return false
	}

	// First sync: initialize offset, no drift yet
	if cs.sampleCount == 0 {
		cs.seed(measuredOffset, at)
		log.Printf("Initial sync: offset=%dμs, rtt=%dμs", cs.offset, rtt)
		return true
	}

	// Second sync: calculate initial drift
	if cs.sampleCount == 1 {
		dt := float64(at - cs.lastSyncMicros)
		if dt > 0 {
			cs.drift = float64(measuredOffset-cs.offset) / dt
			log.Printf("Drift initialized: drift=%.9f μs/μs over Δt=%.0fμs", cs.drift, dt)
		}
		cs.offset = measuredOffset
		cs.lastSyncMicros = at
		cs.sampleCount++
		cs.quality = cs.qualityFor(rtt)
		return true
	}

	dt := float64(at - cs.lastSyncMicros)
	if dt <= 0 {
		log.Printf("Discarding sync sample: non-monotonic time")
		return false
	}

	// Predict what offset should be based on drift
	predictedOffset := cs.offset + int64(cs.drift*dt)
	residual := measuredOffset - predictedOffset

	// Reject outliers; a run of them means the clock really jumped
	maxResidual := cs.limits.MaxResidual.Microseconds()
	if maxResidual > 0 && (residual > maxResidual || residual < -maxResidual) {
		cs.rejected++
		if cs.limits.ReseedAfter > 0 && cs.rejected >= cs.limits.ReseedAfter {
			log.Printf("Re-seeding sync after %d outliers: offset=%dμs", cs.rejected, measuredOffset)
			cs.seed(measuredOffset, at)
			return true
		}
		log.Printf("Discarding sync sample: large residual %dμs (possible clock jump)", residual)
		return false
	}
	cs.rejected = 0

	// Kalman-style update with fixed gain
	cs.offset = predictedOffset + int64(cs.smoothingRate*float64(residual))
	cs.drift = cs.drift + cs.smoothingRate*(float64(residual)/dt)

	cs.lastSyncMicros = at
	cs.sampleCount++
	cs.quality = cs.qualityFor(rtt)

	if cs.sampleCount < 10 {
		log.Printf("Sync #%d: offset=%dμs, drift=%.9f, residual=%dμs, rtt=%dμs",
			cs.sampleCount, cs.offset, cs.drift, residual, rtt)
	}
	return true
}

func (cs *ClockSync) seed(offset, at int64) {
	cs.offset = offset
	cs.drift = 0
	cs.lastSyncMicros = at
	cs.sampleCount = 1
	cs.rejected = 0
	cs.quality = cs.qualityFor(cs.rtt)
}

func (cs *ClockSync) qualityFor(rtt int64) Quality {
	if cs.limits.MaxRTT <= 0 || rtt < cs.limits.MaxRTT.Microseconds()/2 {
		return QualityGood
	}
	return QualityDegraded
}

// Adjust maps a local timestamp (μs) into network time:
// network = local + offset + drift * (local - lastSync)
func (cs *ClockSync) Adjust(localMicros int64) int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.sampleCount == 0 {
		return localMicros
	}

	dt := localMicros - cs.lastSyncMicros
	return localMicros + cs.offset + int64(cs.drift*float64(dt))
}

// GetOffset returns the current offset
func (cs *ClockSync) GetOffset() int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.offset
}

// GetStats returns sync statistics
func (cs *ClockSync) GetStats() (offset, rtt int64, quality Quality) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.offset, cs.rtt, cs.quality
}

// Synced reports whether at least one sample has been accepted
func (cs *ClockSync) Synced() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.sampleCount > 0
}

// CheckQuality updates quality based on time since last sync
func (cs *ClockSync) CheckQuality() Quality {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.sampleCount == 0 {
		return QualityLost
	}
	if cs.limits.StaleAfter > 0 && cs.now().Sub(cs.lastSync) > cs.limits.StaleAfter {
		cs.quality = QualityLost
	}

	return cs.quality
}
