package scheduling

import (
	"context"
	"fmt"
)

// slotInputs is everything one availability decision depends on.
type slotInputs struct {
	slot        TimeSlot
	dateBlocked bool
	slotBlocked bool
	limit       int
	current     int
}

// evaluateSlot is the single availability rule shared by the per-slot check,
// the booking path and the day view. Checks run in order and the first
// failing one decides.
func evaluateSlot(in slotInputs) SlotAvailability {
	out := SlotAvailability{
		TimeSlot: in.slot,
		Limit:    in.limit,
		Current:  in.current,
	}
	if in.limit > 0 {
		out.OccupancyRate = float64(in.current) / float64(in.limit)
	}

	switch {
	case !in.slot.WithinBusinessHours():
		out.Limit, out.Current, out.OccupancyRate = 0, 0, 0
		out.Reason = ReasonBusinessHours
		out.Message = fmt.Sprintf("%s is outside business hours (%s-%s every %d minutes)",
			in.slot, OpeningSlot, ClosingSlot, SlotStep)
	case in.dateBlocked:
		out.Reason = ReasonDateBlocked
		out.Message = "date is blocked"
	case in.slotBlocked:
		out.Reason = ReasonSlotBlocked
		out.Message = fmt.Sprintf("time slot %s is blocked", in.slot)
	case in.limit == 0:
		out.Reason = ReasonNoCapacity
		out.Message = fmt.Sprintf("no configured capacity for %s", in.slot)
	case in.current >= in.limit:
		out.Reason = ReasonSlotFull
		out.Message = fmt.Sprintf("slot full (%d/%d)", in.current, in.limit)
	default:
		out.Available = true
	}
	return out
}

// evaluate gathers the inputs for one slot through r and applies evaluateSlot.
// All inputs are read even when an early check already fails, so the
// reported occupancy matches the day view.
func (s *Service) evaluate(ctx context.Context, r SlotReader, date string, slot TimeSlot) (SlotAvailability, error) {
	in := slotInputs{slot: slot}
	if !slot.WithinBusinessHours() {
		return evaluateSlot(in), nil
	}

	var err error
	if in.dateBlocked, err = r.IsDateBlocked(ctx, date); err != nil {
		return SlotAvailability{}, fmt.Errorf("check blocked date: %w", err)
	}
	if in.slotBlocked, err = r.IsTimeSlotBlocked(ctx, date, slot); err != nil {
		return SlotAvailability{}, fmt.Errorf("check blocked time slot: %w", err)
	}
	if in.limit, err = s.limits.GetLimit(ctx, r, slot); err != nil {
		return SlotAvailability{}, err
	}
	if in.current, err = r.CountOccupying(ctx, date, slot); err != nil {
		return SlotAvailability{}, fmt.Errorf("count slot occupancy: %w", err)
	}
	return evaluateSlot(in), nil
}

// CheckAvailability answers whether (date, slot) can take a booking now.
func (s *Service) CheckAvailability(ctx context.Context, date, timeSlot string) (SlotAvailability, error) {
	date, err := ParseDate(date)
	if err != nil {
		return SlotAvailability{}, invalid("date", "%v", err)
	}
	slot, err := ParseTimeSlot(timeSlot)
	if err != nil {
		return SlotAvailability{}, invalid("time", "%v", err)
	}
	return s.evaluate(ctx, s.repo, date, slot)
}

// GetDaySlotStats evaluates every grid slot of a day from one read snapshot.
// It is read-only and runs outside any transaction.
func (s *Service) GetDaySlotStats(ctx context.Context, date string) (DaySlotStats, error) {
	date, err := ParseDate(date)
	if err != nil {
		return DaySlotStats{}, invalid("date", "%v", err)
	}

	dateBlocked, err := s.repo.IsDateBlocked(ctx, date)
	if err != nil {
		return DaySlotStats{}, fmt.Errorf("check blocked date: %w", err)
	}

	blocked, err := s.repo.ListBlockedTimeSlots(ctx, date)
	if err != nil {
		return DaySlotStats{}, fmt.Errorf("list blocked time slots: %w", err)
	}
	blockedSlots := make(map[TimeSlot]bool, len(blocked))
	for _, b := range blocked {
		blockedSlots[b.TimeSlot] = true
	}

	configured, err := s.repo.ListSlotLimits(ctx)
	if err != nil {
		return DaySlotStats{}, fmt.Errorf("list slot limits: %w", err)
	}
	limits := make(map[TimeSlot]int, len(configured))
	for _, l := range s.limits.Effective(configured) {
		limits[l.TimeSlot] = l.Limit
	}

	counts, err := s.repo.CountOccupyingByDate(ctx, date)
	if err != nil {
		return DaySlotStats{}, fmt.Errorf("count day occupancy: %w", err)
	}

	stats := DaySlotStats{
		Date:          date,
		DateBlocked:   dateBlocked,
		BookedByShift: map[Shift]int{ShiftMorning: 0, ShiftAfternoon: 0},
	}
	for _, slot := range GridSlots() {
		a := evaluateSlot(slotInputs{
			slot:        slot,
			dateBlocked: dateBlocked,
			slotBlocked: blockedSlots[slot],
			limit:       limits[slot],
			current:     counts[slot],
		})
		stats.Slots = append(stats.Slots, a)
		stats.TotalBooked += a.Current
		stats.BookedByShift[slot.Shift()] += a.Current
		if a.Available {
			stats.TotalAvailable += a.Limit - a.Current
		}
	}
	return stats, nil
}
