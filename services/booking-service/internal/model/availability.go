package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is an offset from midnight in whole seconds.
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

var errBadTime = errors.New("expected HH:MM or HH:MM:SS")

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS" in 24h notation.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, errBadTime
	}
	limits := []int{23, 59, 59}
	var vals [3]int
	for i, p := range parts {
		if len(p) != 2 {
			return 0, errBadTime
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, errBadTime
		}
		vals[i] = n
	}
	return TimeOfDay(vals[0]*3600 + vals[1]*60 + vals[2]), nil
}

// TimeOfDayOf returns the wall-clock time of day of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Second
}

// On returns the instant at this time of day on the given date.
func (t TimeOfDay) On(date time.Time) time.Time {
	return Day(date).Add(t.Duration())
}

func (t TimeOfDay) String() string {
	h, m, s := int(t)/3600, int(t)%3600/60, int(t)%60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// AvailabilityWindow is a provider's open hours for one weekday. Start < End always holds for
// stored windows.
type AvailabilityWindow struct {
	ProviderID string
	Weekday    time.Weekday
	Start      TimeOfDay
	End        TimeOfDay
	UpdatedAt  time.Time
}

// Contains reports start <= t < end.
func (w AvailabilityWindow) Contains(t TimeOfDay) bool {
	return t >= w.Start && t < w.End
}

type Slot struct {
	Time      string    `json:"time"`
	StartAt   time.Time `json:"start_at"`
	Available bool      `json:"available"`
}
