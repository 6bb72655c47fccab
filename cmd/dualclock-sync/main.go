// ABOUTME: One-shot time sync diagnostic
// ABOUTME: Syncs against an NTP server once and prints what the clock would show
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/harperreed/dualclock/internal/clockerr"
	"github.com/harperreed/dualclock/internal/config"
	"github.com/harperreed/dualclock/internal/discovery"
	"github.com/harperreed/dualclock/internal/timesource"
	"github.com/harperreed/dualclock/internal/version"
)

var (
	server  = flag.String("server", config.Default().Time.Server, "NTP server (empty: discover via mDNS)")
	zone    = flag.String("zone", config.Default().Time.Zone, "IANA time zone")
	timeout = flag.Duration("timeout", 10*time.Second, "Sync timeout")
	minYear = flag.Int("min-year", config.Default().Time.MinYear, "Reject times in or before this year")
	samples = flag.Int("samples", 1, "Number of syncs to run")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	fmt.Printf("=== %s time sync check ===\n", version.String())

	loc, err := time.LoadLocation(*zone)
	if err != nil {
		log.Fatalf("Invalid zone: %v", err)
	}

	addr := *server
	if addr == "" {
		disc := discovery.NewManager(discovery.Config{})
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		info, err := disc.FindServer(ctx)
		cancel()
		disc.Stop()
		if err != nil {
			log.Fatalf("Server discovery failed: %v", err)
		}
		addr = info.Addr()
	}

	network := timesource.NewHostNetwork()
	ips, _ := timesource.LocalIPs()
	fmt.Printf("Interfaces: %v (connected: %v)\n", ips, network.Connected())
	fmt.Printf("Server:     %s\n", addr)

	cfg := timesource.DefaultConfig()
	cfg.Location = loc
	cfg.MinPlausibleYear = *minYear
	source := timesource.NewSource(timesource.NewNTPFetcher(addr, 5*time.Second), network, cfg)

	failed := false
	for i := 0; i < *samples; i++ {
		start := time.Now()
		err := source.Sync(context.Background(), *timeout)
		took := time.Since(start).Round(time.Millisecond)

		if err != nil {
			failed = true
			fmt.Printf("#%d FAILED after %v (%s): %v\n", i+1, took, clockerr.KindOf(err), err)
			continue
		}

		offset, rtt, quality := source.Stats()
		fmt.Printf("#%d ok after %v: offset %+.3fms rtt %.3fms quality %s\n",
			i+1, took, float64(offset)/1000, float64(rtt)/1000, quality)
	}

	now := source.Now()
	t := now.Seconds()
	fmt.Printf("Date:       %s\n", timesource.FormatDate(source.Time()))
	fmt.Printf("Wall clock: %s (%.3f s since midnight)\n", now, t)

	if failed {
		os.Exit(1)
	}
}
