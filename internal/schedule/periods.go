package schedule

import (
	"fmt"
	"time"
)

// periodLayout is the clock format used in period labels and SchoolInfo.
const periodLayout = "15:04"

// FallbackPeriods returns the fixed eight one-hour periods starting 08:30
// used whenever the school hours cannot produce a usable period list. The
// grid must never end up with zero periods.
func FallbackPeriods() []PeriodConfig {
	periods := make([]PeriodConfig, 0, 8)
	start := time.Date(2000, time.January, 1, 8, 30, 0, 0, time.UTC)
	for i := 1; i <= 8; i++ {
		end := start.Add(time.Hour)
		periods = append(periods, PeriodConfig{
			ID:   i,
			Time: fmt.Sprintf("%s - %s", start.Format(periodLayout), end.Format(periodLayout)),
		})
		start = end
	}
	return periods
}

// GeneratePeriods derives the period list from the school hours. Starting
// at startTime it carves off minutesPerPeriod-sized windows until the next
// window would run past endTime; a trailing partial period is discarded.
// Ids are sequential from 1 and labels are "HH:mm - HH:mm".
//
// Degenerate inputs (empty times, zero minutes, start >= end) yield the
// fallback list. The function is deterministic and side-effect free; the
// migration path and the interactive school-hours mutator both call it.
func GeneratePeriods(startTime, endTime string, minutesPerPeriod int) []PeriodConfig {
	if startTime == "" || endTime == "" || minutesPerPeriod <= 0 {
		return FallbackPeriods()
	}
	start, err := time.Parse(periodLayout, startTime)
	if err != nil {
		return FallbackPeriods()
	}
	end, err := time.Parse(periodLayout, endTime)
	if err != nil {
		return FallbackPeriods()
	}

	window := time.Duration(minutesPerPeriod) * time.Minute

	var periods []PeriodConfig
	id := 1
	for cur := start; cur.Before(end); {
		next := cur.Add(window)
		if next.After(end) {
			break
		}
		mpp := minutesPerPeriod
		periods = append(periods, PeriodConfig{
			ID:               id,
			Time:             fmt.Sprintf("%s - %s", cur.Format(periodLayout), next.Format(periodLayout)),
			MinutesPerPeriod: &mpp,
		})
		id++
		cur = next
	}

	if len(periods) == 0 {
		return FallbackPeriods()
	}
	return periods
}
