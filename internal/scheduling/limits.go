package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// LimitBand is one row of the default capacity curve.
type LimitBand struct {
	Name  string
	From  TimeSlot // inclusive
	To    TimeSlot // inclusive
	Limit int
}

// DefaultLimitCurve applies to every slot without a configured limit.
// Early and late morning differ on purpose; do not flatten.
var DefaultLimitCurve = []LimitBand{
	{Name: "early_morning", From: OpeningSlot, To: TimeSlot(8*60 + 45), Limit: 5},
	{Name: "late_morning", From: TimeSlot(9 * 60), To: TimeSlot(11*60 + 45), Limit: 3},
	{Name: "afternoon", From: TimeSlot(12 * 60), To: TimeSlot(15*60 + 45), Limit: 2},
	{Name: "end_of_day", From: TimeSlot(16 * 60), To: ClosingSlot, Limit: 1},
}

// LimitTable resolves per-slot limits: configured value first, then the
// default curve.
type LimitTable struct {
	defaults map[TimeSlot]int
}

// NewLimitTable resolves the curve against the grid once. It fails when the
// curve leaves a grid slot uncovered or covers one twice.
func NewLimitTable(curve []LimitBand) (*LimitTable, error) {
	defaults := make(map[TimeSlot]int, len(GridSlots()))
	for _, slot := range GridSlots() {
		matched := 0
		for _, band := range curve {
			if slot >= band.From && slot <= band.To {
				defaults[slot] = band.Limit
				matched++
			}
		}
		if matched != 1 {
			return nil, fmt.Errorf("default limit curve covers slot %s %d times", slot, matched)
		}
	}
	return &LimitTable{defaults: defaults}, nil
}

// DefaultLimit is the curve value for a slot, 0 outside the grid.
func (t *LimitTable) DefaultLimit(slot TimeSlot) int {
	return t.defaults[slot]
}

// GetLimit resolves the limit of slot through r.
func (t *LimitTable) GetLimit(ctx context.Context, r SlotReader, slot TimeSlot) (int, error) {
	limit, ok, err := r.GetSlotLimit(ctx, slot)
	if err != nil {
		return 0, fmt.Errorf("load slot limit: %w", err)
	}
	if ok {
		return limit, nil
	}
	return t.DefaultLimit(slot), nil
}

// Effective merges configured limits over the curve for the whole grid.
func (t *LimitTable) Effective(configured []SlotLimit) []EffectiveLimit {
	byslot := make(map[TimeSlot]int, len(configured))
	for _, l := range configured {
		byslot[l.TimeSlot] = l.Limit
	}

	out := make([]EffectiveLimit, 0, len(t.defaults))
	for _, slot := range GridSlots() {
		if limit, ok := byslot[slot]; ok {
			out = append(out, EffectiveLimit{TimeSlot: slot, Limit: limit, Configured: true})
			continue
		}
		out = append(out, EffectiveLimit{TimeSlot: slot, Limit: t.defaults[slot]})
	}
	return out
}

// SlotLimitInput is one entry of a bulk save.
type SlotLimitInput struct {
	TimeSlot string
	Limit    int
}

// validateLimits checks a whole batch before anything is written. Negative
// limits are rejected, never clamped.
func validateLimits(in []SlotLimitInput, now time.Time) ([]SlotLimit, error) {
	if len(in) == 0 {
		return nil, invalid("limits", "at least one slot limit is required")
	}

	seen := make(map[TimeSlot]bool, len(in))
	out := make([]SlotLimit, 0, len(in))
	for i, l := range in {
		slot, err := ParseTimeSlot(l.TimeSlot)
		if err != nil {
			return nil, invalid(fmt.Sprintf("limits[%d].time_slot", i), "%v", err)
		}
		if !slot.WithinBusinessHours() {
			return nil, invalid(fmt.Sprintf("limits[%d].time_slot", i), "%s is not a slot of the operating grid", slot)
		}
		if l.Limit < 0 {
			return nil, invalid(fmt.Sprintf("limits[%d].limit", i), "limit must be >= 0, got %d", l.Limit)
		}
		if seen[slot] {
			return nil, invalid(fmt.Sprintf("limits[%d].time_slot", i), "slot %s listed twice", slot)
		}
		seen[slot] = true
		out = append(out, SlotLimit{TimeSlot: slot, Limit: l.Limit, UpdatedAt: now})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TimeSlot < out[j].TimeSlot })
	return out, nil
}

// GetLimit resolves the limit of one slot against the store.
func (s *Service) GetLimit(ctx context.Context, timeSlot string) (int, error) {
	slot, err := ParseTimeSlot(timeSlot)
	if err != nil {
		return 0, invalid("time_slot", "%v", err)
	}
	return s.limits.GetLimit(ctx, s.repo, slot)
}

// ListLimits returns the effective limit of every grid slot.
func (s *Service) ListLimits(ctx context.Context) ([]EffectiveLimit, error) {
	configured, err := s.repo.ListSlotLimits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slot limits: %w", err)
	}
	return s.limits.Effective(configured), nil
}

// SaveLimits upserts a batch of limits in one transaction. A zero limit is
// stored and closes the slot.
func (s *Service) SaveLimits(ctx context.Context, in []SlotLimitInput) ([]EffectiveLimit, error) {
	limits, err := validateLimits(in, s.now())
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.UpsertSlotLimits(ctx, limits); err != nil {
			return fmt.Errorf("upsert slot limits: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("count", len(limits)).Msg("slot limits saved")
	return s.ListLimits(ctx)
}
