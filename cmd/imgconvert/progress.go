package main

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// progressBar renders an in-place terminal progress bar driven by the write
// progress callback. Redraws are throttled so per-chunk callbacks stay cheap.
type progressBar struct {
	label    string
	barWidth int
	start    time.Time
	lastDraw time.Time
}

func newProgressBar(label string) *progressBar {
	return &progressBar{
		label:    label,
		barWidth: 30,
		start:    time.Now(),
	}
}

// update draws the bar state; returns false so it can be used directly as an
// imgbuf.ProgressCallback that never cancels.
func (pb *progressBar) update(done, total int64) bool {
	now := time.Now()
	if done < total && now.Sub(pb.lastDraw) < 100*time.Millisecond {
		return false
	}
	pb.lastDraw = now

	var frac float64
	if total > 0 {
		frac = float64(done) / float64(total)
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(float64(pb.barWidth) * frac)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.barWidth-filled)

	elapsed := time.Since(pb.start).Truncate(time.Second)
	fmt.Fprintf(os.Stderr, "\r%s [%s] %3.0f%%  %d/%d rows  %s\033[K",
		pb.label, bar, frac*100, done, total, formatDuration(elapsed))
	return false
}

func (pb *progressBar) finish() {
	fmt.Fprint(os.Stderr, "\n")
}

// formatDuration formats a duration concisely (e.g. "1m23s", "45s", "0s").
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) - m*60
	return fmt.Sprintf("%dm%02ds", m, s)
}
