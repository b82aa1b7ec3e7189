package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/yeremiapane/estate-crm/models"
)

// DefaultReminderLadder dipakai bila user tidak punya timeline custom yang aktif.
var DefaultReminderLadder = []models.ReminderInterval{
	{Hours: 24, Label: "24 hours"},
	{Hours: 2, Label: "2 hours"},
	{Hours: 1, Label: "1 hour"},
	{Hours: 0.5, Label: "30 minutes"},
}

type ReminderAction int

const (
	// ActionNone: nothing to do this tick.
	ActionNone ReminderAction = iota
	// ActionFire: a threshold was crossed and may fire (subject to dedup).
	ActionFire
	// ActionRetire: the reminder is due; mark it completed.
	ActionRetire
)

func (a ReminderAction) String() string {
	switch a {
	case ActionFire:
		return "fire"
	case ActionRetire:
		return "retire"
	default:
		return "none"
	}
}

type ReminderDecision struct {
	Action    ReminderAction
	HoursLeft float64
	Interval  models.ReminderInterval
}

// HoursLeft returns the signed number of hours from now until due.
func HoursLeft(due, now time.Time) float64 {
	return due.Sub(now).Hours()
}

// ResolveLadder returns the ladder that applies to a user, sorted by hours
// descending. Non-positive thresholds are dropped.
func ResolveLadder(timeline models.ReminderTimeline) []models.ReminderInterval {
	if timeline.UsesCustomLadder() {
		if ladder := sortLadder(timeline.Intervals); len(ladder) > 0 {
			return ladder
		}
	}
	return sortLadder(DefaultReminderLadder)
}

// sortLadder copies the positive thresholds of in, sorted by hours descending.
func sortLadder(in []models.ReminderInterval) []models.ReminderInterval {
	ladder := make([]models.ReminderInterval, 0, len(in))
	for _, iv := range in {
		if iv.Hours > 0 {
			ladder = append(ladder, iv)
		}
	}
	sort.SliceStable(ladder, func(i, j int) bool { return ladder[i].Hours > ladder[j].Hours })
	return ladder
}

// SelectInterval picks the threshold the lead has most recently crossed below:
// the smallest hours value that is still >= hoursLeft. ladder must be sorted
// descending. Only one threshold is returned even when several are satisfied.
func SelectInterval(ladder []models.ReminderInterval, hoursLeft float64) (models.ReminderInterval, bool) {
	for i := len(ladder) - 1; i >= 0; i-- {
		if ladder[i].Hours >= hoursLeft {
			return ladder[i], true
		}
	}
	return models.ReminderInterval{}, false
}

// DecideReminder evaluates one reminder against the ladder at now.
func DecideReminder(due, now time.Time, ladder []models.ReminderInterval) ReminderDecision {
	left := HoursLeft(due, now)
	if left <= 0 {
		return ReminderDecision{Action: ActionRetire, HoursLeft: left}
	}

	iv, ok := SelectInterval(ladder, left)
	if !ok {
		return ReminderDecision{Action: ActionNone, HoursLeft: left}
	}
	return ReminderDecision{Action: ActionFire, HoursLeft: left, Interval: iv}
}

// FormatHours renders a fractional hour count as "2h", "30m" or "1h 30m".
func FormatHours(h float64) string {
	d := time.Duration(h * float64(time.Hour)).Round(time.Minute)
	if d < 0 {
		d = -d
	}
	hours := int(d / time.Hour)
	mins := int((d % time.Hour) / time.Minute)
	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", mins)
	case mins == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
}
