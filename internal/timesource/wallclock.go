// ABOUTME: Wall-clock time of day as consumed by the renderers
// ABOUTME: Converts between time.Time and seconds-since-midnight
package timesource

import (
	"fmt"
	"math"
	"time"
)

// SecondsPerDay bounds every seconds-since-midnight value: [0, SecondsPerDay).
const SecondsPerDay = 86400

// WallClock is a time of day with sub-second precision.
type WallClock struct {
	Hour      int     // 0-23
	Minute    int     // 0-59
	Second    int     // 0-59
	SubSecond float64 // [0, 1)
}

// FromTime extracts the time of day from t in t's location.
func FromTime(t time.Time) WallClock {
	h, m, s := t.Clock()
	return WallClock{
		Hour:      h,
		Minute:    m,
		Second:    s,
		SubSecond: float64(t.Nanosecond()) / 1e9,
	}
}

// WholeSeconds returns seconds since midnight without the fraction.
func (w WallClock) WholeSeconds() float64 {
	return float64(w.Hour*3600 + w.Minute*60 + w.Second)
}

// Seconds returns seconds since midnight including the fraction.
func (w WallClock) Seconds() float64 {
	return w.WholeSeconds() + w.SubSecond
}

func (w WallClock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", w.Hour, w.Minute, w.Second, int(w.SubSecond*1000))
}

// WrapDay folds any seconds value into [0, SecondsPerDay).
func WrapDay(t float64) float64 {
	t = math.Mod(t, SecondsPerDay)
	if t < 0 {
		t += SecondsPerDay
	}
	return t
}

// FormatDate renders t the way the sync log reports it, e.g. "Tue  15-10-26 14:05:30".
func FormatDate(t time.Time) string {
	return t.Format("Mon  02-01-06 15:04:05")
}
