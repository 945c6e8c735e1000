// Package timeline maps the monotonic post counter onto the simulated
// calendar. It is the anchor that lets every component recompute "when are
// we" without persisted clock state: pure, total, and identical across
// process restarts.
package timeline

import (
	"math"
	"time"
)

const (
	// DefaultCycleDays decouples narrative days from posts per year:
	// 384/96 = 4 simulated days per post at the default cadence.
	DefaultCycleDays = 384

	DefaultPostsPerYear = 96
	DefaultStartAge     = 22.0

	// TerminalAge ends the narrative; the simulation starts at 22 in 2025
	// and closes in 2075.
	TerminalAge = 72.0
)

// DefaultStartDate is the first simulated day.
var DefaultStartDate = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// Clock converts a post count into simulated elapsed days, calendar date
// and persona age.
type Clock struct {
	StartDate    time.Time
	StartAge     float64
	PostsPerYear int
	CycleDays    int
}

// NewClock returns a clock with the default epoch and the given cadence.
func NewClock(postsPerYear int) Clock {
	if postsPerYear <= 0 {
		postsPerYear = DefaultPostsPerYear
	}
	return Clock{
		StartDate:    DefaultStartDate,
		StartAge:     DefaultStartAge,
		PostsPerYear: postsPerYear,
		CycleDays:    DefaultCycleDays,
	}
}

// Age returns the persona age after count posts. Fractional age is derived,
// never stored rounded.
func (c Clock) Age(count int) float64 {
	return c.StartAge + float64(count)/float64(c.PostsPerYear)
}

// Day returns the number of simulated days elapsed after count posts.
func (c Clock) Day(count int) int {
	return int(math.Floor(float64(count) * float64(c.CycleDays) / float64(c.PostsPerYear)))
}

// Date returns the simulated calendar date of the count-th post.
func (c Clock) Date(count int) time.Time {
	return c.StartDate.AddDate(0, 0, c.Day(count))
}

// Year returns the simulated calendar year of the count-th post.
func (c Clock) Year(count int) int {
	return c.Date(count).Year()
}

// IsBirthday reports whether the count-th post lands on the fixed birthday
// slot of a simulated year. The age crosses a whole number exactly at
// multiples of the yearly cadence.
func (c Clock) IsBirthday(count int) bool {
	return count > 0 && count%c.PostsPerYear == 0
}

// IsTerminal reports whether the narrative has reached its final age.
func (c Clock) IsTerminal(count int) bool {
	return c.Age(count) >= TerminalAge
}
