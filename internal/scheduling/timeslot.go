package scheduling

import (
	"fmt"
	"time"
)

// DateLayout is the layout of every date key handled by the engine.
const DateLayout = "2006-01-02"

// TimeSlot is a time of day expressed in minutes after midnight, clinic local time.
type TimeSlot int

// Business constants. These are not configuration.
const (
	SlotStep            = 15
	OpeningSlot         = TimeSlot(6*60 + 30)
	ClosingSlot         = TimeSlot(16*60 + 45)
	AdditionalExamsLast = TimeSlot(12 * 60)
	noon                = TimeSlot(12 * 60)
)

// ParseTimeSlot parses "HH:MM". It does not check the operating grid.
func ParseTimeSlot(s string) (TimeSlot, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, fmt.Errorf("invalid time slot %q, expected HH:MM", s)
	}
	return TimeSlot(t.Hour()*60 + t.Minute()), nil
}

func (t TimeSlot) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeSlot) Hour() int {
	return int(t) / 60
}

// WithinBusinessHours reports whether t is a bookable point of the grid:
// between 06:30 and 16:45 inclusive and aligned to 15 minutes.
func (t TimeSlot) WithinBusinessHours() bool {
	if t < OpeningSlot || t > ClosingSlot {
		return false
	}
	return int(t-OpeningSlot)%SlotStep == 0
}

// WithinAdditionalExamsWindow reports whether exams with additional procedures
// may start at t (06:30 through 12:00).
func (t TimeSlot) WithinAdditionalExamsWindow() bool {
	return t.WithinBusinessHours() && t <= AdditionalExamsLast
}

// Shift is the half of the operating day a slot belongs to.
type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
)

func (t TimeSlot) Shift() Shift {
	if t < noon {
		return ShiftMorning
	}
	return ShiftAfternoon
}

// GridSlots lists every slot of the operating day in order.
func GridSlots() []TimeSlot {
	slots := make([]TimeSlot, 0, int(ClosingSlot-OpeningSlot)/SlotStep+1)
	for t := OpeningSlot; t <= ClosingSlot; t += SlotStep {
		slots = append(slots, t)
	}
	return slots
}

// ParseDate validates a YYYY-MM-DD key and returns it normalized.
func ParseDate(s string) (string, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d.Format(DateLayout), nil
}

// SlotOf splits an instant into the clinic-local date key and time slot.
// Seconds are not truncated: an instant with seconds lands off the grid.
func SlotOf(at time.Time, loc *time.Location) (string, TimeSlot, bool) {
	local := at.In(loc)
	slot := TimeSlot(local.Hour()*60 + local.Minute())
	aligned := local.Second() == 0 && local.Nanosecond() == 0
	return local.Format(DateLayout), slot, aligned
}

// At builds the clinic-local instant for a date key and slot.
func At(date string, slot TimeSlot, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), slot.Hour(), int(slot)%60, 0, 0, loc), nil
}
