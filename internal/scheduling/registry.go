package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Blocking is preventive: adding a block never touches appointments that
// already exist on that date or slot.

func (s *Service) IsDateBlocked(ctx context.Context, date string) (bool, error) {
	date, err := ParseDate(date)
	if err != nil {
		return false, invalid("date", "%v", err)
	}
	return s.repo.IsDateBlocked(ctx, date)
}

// AddBlockedDate closes a whole day. A date can only be blocked once.
func (s *Service) AddBlockedDate(ctx context.Context, date, reason string) (*BlockedDate, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, invalid("date", "%v", err)
	}

	b := &BlockedDate{
		ID:        uuid.New(),
		Date:      date,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: s.now(),
	}
	if err := s.repo.InsertBlockedDate(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info().Str("date", date).Str("reason", b.Reason).Msg("date blocked")
	return b, nil
}

func (s *Service) RemoveBlockedDate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteBlockedDate(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("blocked_date_id", id.String()).Msg("date unblocked")
	return nil
}

// ListBlockedDates lists blocks in [from, to]. Empty bounds are open.
func (s *Service) ListBlockedDates(ctx context.Context, from, to string) ([]BlockedDate, error) {
	var err error
	if from != "" {
		if from, err = ParseDate(from); err != nil {
			return nil, invalid("from", "%v", err)
		}
	}
	if to != "" {
		if to, err = ParseDate(to); err != nil {
			return nil, invalid("to", "%v", err)
		}
	}
	dates, err := s.repo.ListBlockedDates(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list blocked dates: %w", err)
	}
	return dates, nil
}

func (s *Service) IsTimeSlotBlocked(ctx context.Context, date, timeSlot string) (bool, error) {
	date, slot, err := parseDateSlot(date, timeSlot)
	if err != nil {
		return false, err
	}
	return s.repo.IsTimeSlotBlocked(ctx, date, slot)
}

// AddBlockedTimeSlot closes one (date, slot) pair, independently of any
// date-level block.
func (s *Service) AddBlockedTimeSlot(ctx context.Context, date, timeSlot, reason string) (*BlockedTimeSlot, error) {
	date, slot, err := parseDateSlot(date, timeSlot)
	if err != nil {
		return nil, err
	}
	if !slot.WithinBusinessHours() {
		return nil, invalid("time_slot", "%s is not a slot of the operating grid", slot)
	}

	b := &BlockedTimeSlot{
		ID:        uuid.New(),
		Date:      date,
		TimeSlot:  slot,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: s.now(),
	}
	if err := s.repo.InsertBlockedTimeSlot(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info().Str("date", date).Str("time_slot", slot.String()).Msg("time slot blocked")
	return b, nil
}

func (s *Service) RemoveBlockedTimeSlot(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteBlockedTimeSlot(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("blocked_slot_id", id.String()).Msg("time slot unblocked")
	return nil
}

func (s *Service) ListBlockedTimeSlots(ctx context.Context, date string) ([]BlockedTimeSlot, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, invalid("date", "%v", err)
	}
	slots, err := s.repo.ListBlockedTimeSlots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list blocked time slots: %w", err)
	}
	return slots, nil
}

func parseDateSlot(date, timeSlot string) (string, TimeSlot, error) {
	date, err := ParseDate(date)
	if err != nil {
		return "", 0, invalid("date", "%v", err)
	}
	slot, err := ParseTimeSlot(timeSlot)
	if err != nil {
		return "", 0, invalid("time_slot", "%v", err)
	}
	return date, slot, nil
}
