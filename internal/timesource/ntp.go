// ABOUTME: NTP fetcher backing the time source
// ABOUTME: Queries one server per call and returns a validated offset sample
package timesource

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// Sample is one network time measurement
type Sample struct {
	Offset  time.Duration // network - local
	RTT     time.Duration
	Time    time.Time // network time when the reply was received
	Stratum uint8
}

// Fetcher obtains a single time sample. Implementations must respect ctx's
// deadline.
type Fetcher interface {
	Fetch(ctx context.Context) (Sample, error)
}

// NTPFetcher queries an NTP server
type NTPFetcher struct {
	Server  string
	Timeout time.Duration // per query; clipped to the context deadline
}

// NewNTPFetcher creates a fetcher for server (host or host:port)
func NewNTPFetcher(server string, timeout time.Duration) *NTPFetcher {
	return &NTPFetcher{Server: server, Timeout: timeout}
}

// Fetch performs one NTP exchange
func (f *NTPFetcher) Fetch(ctx context.Context) (Sample, error) {
	timeout := f.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return Sample{}, context.DeadlineExceeded
	}
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}

	resp, err := ntp.QueryWithOptions(f.Server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return Sample{}, fmt.Errorf("ntp query %s: %w", f.Server, err)
	}
	if err := resp.Validate(); err != nil {
		return Sample{}, fmt.Errorf("invalid ntp response from %s: %w", f.Server, err)
	}

	return Sample{
		Offset:  resp.ClockOffset,
		RTT:     resp.RTT,
		Time:    resp.Time,
		Stratum: resp.Stratum,
	}, nil
}

func (f *NTPFetcher) String() string {
	return "ntp://" + f.Server
}
