// Package solver picks the cheapest admissible start hour for a deferrable
// job given an hourly energy price curve.
package solver

import (
	"time"

	"github.com/icclab/loadshift/internal/dtw"
)

// OptimalStart returns the hour-aligned start time minimising the summed
// hourly price over the job's footprint, subject to starting after now and
// finishing by deadline. jobDuration is in minutes; the footprint is its
// whole-hour part, so a 75-minute job is costed over one hour.
//
// Candidates are scanned chronologically with strict-less comparison, so
// ties resolve to the earliest hour. The boolean is false when no admissible
// hour remains within the 48-hour price horizon.
func OptimalStart(now time.Time, curve *dtw.PriceCurve, jobDuration int, deadline time.Time) (time.Time, bool) {
	ref := curve.Merged()

	eligible := make(map[time.Time]bool, len(ref))
	for t := range ref {
		eligible[t] = true
	}

	// Hours of today up to and including the current hour window are gone.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for h := 0; h <= now.Hour(); h++ {
		delete(eligible, today.Add(time.Duration(h)*time.Hour))
	}

	// Drop start hours too late for the job to finish by the deadline.
	finalTime := today.Add(48 * time.Hour)
	latest := deadline.Add(-time.Duration(jobDuration) * time.Minute)
	if latest.Before(finalTime) {
		for it := ceilHour(latest); it.Before(finalTime); it = it.Add(time.Hour) {
			delete(eligible, it)
		}
	}

	hours := jobDuration / 60
	var (
		best     time.Time
		bestCost float64
		found    bool
	)
	for t := earliest(eligible); !t.IsZero(); t = nextAfter(eligible, t) {
		cost, ok := footprintCost(ref, t, hours)
		if !ok {
			continue
		}
		if !found || cost < bestCost {
			best, bestCost, found = t, cost, true
		}
	}
	return best, found
}

// footprintCost sums the price over hours consecutive hours starting at t.
// It reports false when any hour of the footprint falls outside the curve.
func footprintCost(ref map[time.Time]float64, t time.Time, hours int) (float64, bool) {
	var cost float64
	for i := 0; i < hours; i++ {
		p, ok := ref[t.Add(time.Duration(i)*time.Hour)]
		if !ok {
			return 0, false
		}
		cost += p
	}
	return cost, true
}

// ceilHour rounds t up to the next hour boundary; hour-aligned instants are
// returned unchanged.
func ceilHour(t time.Time) time.Time {
	aligned := t.Truncate(time.Hour)
	if aligned.Equal(t) {
		return t
	}
	return aligned.Add(time.Hour)
}

// earliest returns the chronologically first key, or the zero time when the
// set is empty.
func earliest(set map[time.Time]bool) time.Time {
	var min time.Time
	for t := range set {
		if min.IsZero() || t.Before(min) {
			min = t
		}
	}
	return min
}

// nextAfter returns the chronologically next key after t, or the zero time.
func nextAfter(set map[time.Time]bool, after time.Time) time.Time {
	var min time.Time
	for t := range set {
		if !t.After(after) {
			continue
		}
		if min.IsZero() || t.Before(min) {
			min = t
		}
	}
	return min
}
