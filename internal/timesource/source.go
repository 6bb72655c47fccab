// ABOUTME: Time source combining the local clock with NTP corrections
// ABOUTME: Sync blocks with a timeout; Now never blocks and never fails
package timesource

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/harperreed/dualclock/internal/clockerr"
)

// Config holds time source configuration
type Config struct {
	Location         *time.Location   // Zone for wall-clock conversion (default UTC)
	MinPlausibleYear int              // Times in or before this year are rejected
	PollInterval     time.Duration    // Delay between fetch attempts during Sync
	Limits           SyncLimits       // Sample acceptance limits
	Clock            func() time.Time // Local clock, time.Now if nil
}

// DefaultConfig returns the settings the clock ships with
func DefaultConfig() Config {
	return Config{
		Location:         time.UTC,
		MinPlausibleYear: 2023,
		PollInterval:     100 * time.Millisecond,
		Limits:           DefaultSyncLimits(),
	}
}

// Source exposes the best-known wall-clock time
type Source struct {
	config   Config
	fetcher  Fetcher
	network  Network
	clock    *ClockSync
	lastSync time.Time
}

// NewSource creates a time source. network may be nil when association is
// handled elsewhere.
func NewSource(fetcher Fetcher, network Network, config Config) *Source {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	cs := NewClockSync(config.Limits)
	cs.now = config.Clock

	return &Source{
		config:  config,
		fetcher: fetcher,
		network: network,
		clock:   cs,
	}
}

// Sync fetches network time until a plausible sample is accepted or timeout
// elapses. The local clock keeps running either way. Cancelling ctx returns
// ctx.Err() unclassified.
func (s *Source) Sync(ctx context.Context, timeout time.Duration) error {
	const op = "timesource.Sync"

	if s.network != nil && !s.network.Connected() {
		log.Printf("Error: update time failed, no network connection")
		return clockerr.New(op, clockerr.KindNetworkUnavailable, nil)
	}
	if s.fetcher == nil {
		return clockerr.New(op, clockerr.KindNetworkUnavailable, fmt.Errorf("no time server configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Printf("Updating time from %v (timeout %v)", s.fetcher, timeout)

	var (
		implausible int
		lastErr     error
		lastSeen    time.Time
	)

	poll := time.NewTimer(0)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return s.syncFailed(op, implausible, lastSeen, lastErr)
		case <-poll.C:
		}

		sample, err := s.fetcher.Fetch(ctx)
		if err != nil {
			lastErr = err
		} else {
			local := s.config.Clock()
			candidate := local.Add(sample.Offset)

			switch {
			case !s.plausible(candidate):
				implausible++
				lastSeen = candidate
			case !s.clock.ProcessSample(sample.Offset.Microseconds(), sample.RTT.Microseconds(), local.UnixMicro()):
				lastErr = fmt.Errorf("sample rejected (offset %v, rtt %v)", sample.Offset, sample.RTT)
			default:
				s.lastSync = local
				log.Printf("System time is now: %s", FormatDate(s.Time()))
				log.Printf("[ok] time updated (offset %v, rtt %v, stratum %d)", sample.Offset, sample.RTT, sample.Stratum)
				return nil
			}
		}

		poll.Reset(s.config.PollInterval)
	}
}

// syncFailed classifies a sync that hit its deadline. Implausible dates win
// over timeouts; rejected samples count as a timeout carrying the reason.
func (s *Source) syncFailed(op string, implausible int, lastSeen time.Time, lastErr error) error {
	if implausible > 0 {
		log.Printf("Error: invalid date received: %s", FormatDate(lastSeen))
		return clockerr.New(op, clockerr.KindImplausibleTime,
			fmt.Errorf("year %d not after %d", lastSeen.Year(), s.config.MinPlausibleYear))
	}

	log.Printf("Error: timeout while trying to update the current time")
	if lastErr != nil {
		log.Printf("Last fetch error: %v", lastErr)
	}
	return clockerr.New(op, clockerr.KindTimeSyncTimeout, lastErr)
}

func (s *Source) plausible(t time.Time) bool {
	return t.Year() > s.config.MinPlausibleYear
}

// Time returns the corrected current time in the configured zone
func (s *Source) Time() time.Time {
	local := s.config.Clock().UnixMicro()
	return time.UnixMicro(s.clock.Adjust(local)).In(s.config.Location)
}

// Now returns the current wall-clock time. Before a successful sync this is
// whatever the local clock says.
func (s *Source) Now() WallClock {
	return FromTime(s.Time())
}

// Synced reports whether any sync has succeeded
func (s *Source) Synced() bool {
	return s.clock.Synced()
}

// LastSync returns the local time of the last successful sync
func (s *Source) LastSync() time.Time {
	return s.lastSync
}

// Stats returns offset, rtt (μs) and current quality
func (s *Source) Stats() (offset, rtt int64, quality Quality) {
	quality = s.clock.CheckQuality()
	offset, rtt, _ = s.clock.GetStats()
	return offset, rtt, quality
}
