package scheduling

import (
	"context"
	"fmt"
)

// ShiftLedger keeps per-date booked counters for each shift. It only ever
// runs inside a store transaction that holds the ledger row lock.
//
// The per-slot limit table is the authoritative capacity model, so by default
// a shift offers the sum of its effective slot limits. With EnforceCeiling set
// the configured capacities become a fixed, stricter ceiling instead.
type ShiftLedger struct {
	MorningCapacity   int
	AfternoonCapacity int
	EnforceCeiling    bool
	Limits            *LimitTable
}

// ceilings resolves the capacities a new ledger row for date starts with.
func (l *ShiftLedger) ceilings(ctx context.Context, r SlotReader, date string) (ShiftCapacity, error) {
	c := ShiftCapacity{
		Date:              date,
		MorningCapacity:   l.MorningCapacity,
		AfternoonCapacity: l.AfternoonCapacity,
	}
	if l.EnforceCeiling {
		return c, nil
	}

	configured, err := r.ListSlotLimits(ctx)
	if err != nil {
		return ShiftCapacity{}, fmt.Errorf("list slot limits: %w", err)
	}
	c.MorningCapacity, c.AfternoonCapacity = 0, 0
	for _, el := range l.Limits.Effective(configured) {
		if el.TimeSlot.Shift() == ShiftMorning {
			c.MorningCapacity += el.Limit
		} else {
			c.AfternoonCapacity += el.Limit
		}
	}
	return c, nil
}

// settle brings a stored row up to date with the current slot limits. A
// derived capacity never drops below what is already booked, which happens
// when limits are lowered after bookings were taken. Fixed ceilings keep the
// value the row was created with.
func (l *ShiftLedger) settle(row, current ShiftCapacity) ShiftCapacity {
	if l.EnforceCeiling {
		return row
	}
	row.MorningCapacity = max(current.MorningCapacity, row.MorningBooked)
	row.AfternoonCapacity = max(current.AfternoonCapacity, row.AfternoonBooked)
	return row
}

func (l *ShiftLedger) lock(ctx context.Context, tx Tx, date string) (ShiftCapacity, error) {
	current, err := l.ceilings(ctx, tx, date)
	if err != nil {
		return ShiftCapacity{}, err
	}
	c, err := tx.LockShiftCapacity(ctx, current)
	if err != nil {
		return ShiftCapacity{}, fmt.Errorf("lock shift capacity: %w", err)
	}
	return l.settle(c, current), nil
}

// Reserve counts one more booking in (date, shift). booked never passes
// capacity.
func (l *ShiftLedger) Reserve(ctx context.Context, tx Tx, date string, shift Shift) error {
	c, err := l.lock(ctx, tx, date)
	if err != nil {
		return err
	}

	booked, capacity := c.Booked(shift), c.Capacity(shift)
	if booked >= capacity {
		return &CapacityError{
			Reason:  ReasonShiftFull,
			Message: fmt.Sprintf("%s shift full (%d/%d)", shift, booked, capacity),
			Current: booked,
			Limit:   capacity,
		}
	}

	c = adjust(c, shift, +1)
	if err := tx.SaveShiftCapacity(ctx, c); err != nil {
		return fmt.Errorf("save shift capacity: %w", err)
	}
	return nil
}

// Release gives one booking in (date, shift) back.
func (l *ShiftLedger) Release(ctx context.Context, tx Tx, date string, shift Shift) error {
	c, err := l.lock(ctx, tx, date)
	if err != nil {
		return err
	}

	if c.Booked(shift) <= 0 {
		return fmt.Errorf("%w: %s %s", ErrLedgerUnderflow, date, shift)
	}

	c = adjust(c, shift, -1)
	if err := tx.SaveShiftCapacity(ctx, c); err != nil {
		return fmt.Errorf("save shift capacity: %w", err)
	}
	return nil
}

func adjust(c ShiftCapacity, shift Shift, delta int) ShiftCapacity {
	if shift == ShiftMorning {
		c.MorningBooked += delta
	} else {
		c.AfternoonBooked += delta
	}
	return c
}

// GetShiftCapacity reads the ledger for one date. Dates nobody booked yet
// report the current capacities with zero bookings.
func (s *Service) GetShiftCapacity(ctx context.Context, date string) (ShiftCapacity, error) {
	date, err := ParseDate(date)
	if err != nil {
		return ShiftCapacity{}, invalid("date", "%v", err)
	}

	current, err := s.ledger.ceilings(ctx, s.repo, date)
	if err != nil {
		return ShiftCapacity{}, err
	}
	c, err := s.repo.GetShiftCapacity(ctx, date)
	if err != nil {
		return ShiftCapacity{}, fmt.Errorf("get shift capacity: %w", err)
	}
	if c == nil {
		return current, nil
	}
	return s.ledger.settle(*c, current), nil
}
