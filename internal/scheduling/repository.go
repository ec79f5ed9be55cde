package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// SlotReader holds the reads behind an availability decision. Both the
// repository and a transaction satisfy it, so the booking path can evaluate
// availability inside its own transaction.
type SlotReader interface {
	IsDateBlocked(ctx context.Context, date string) (bool, error)
	IsTimeSlotBlocked(ctx context.Context, date string, slot TimeSlot) (bool, error)
	// GetSlotLimit returns the configured limit and whether one exists.
	GetSlotLimit(ctx context.Context, slot TimeSlot) (int, bool, error)
	// CountOccupying counts scheduled and completed appointments in (date, slot).
	CountOccupying(ctx context.Context, date string, slot TimeSlot) (int, error)
	// ListSlotLimits returns every configured limit ordered by slot.
	ListSlotLimits(ctx context.Context) ([]SlotLimit, error)
}

// Tx is the unit of work for every read-modify-write on shared counters.
type Tx interface {
	SlotReader

	// LockSlot serializes bookings on one (date, slot) until the tx ends.
	LockSlot(ctx context.Context, date string, slot TimeSlot) error

	// LockShiftCapacity creates the ledger row with defaults if missing and
	// locks it until the tx ends.
	LockShiftCapacity(ctx context.Context, defaults ShiftCapacity) (ShiftCapacity, error)
	SaveShiftCapacity(ctx context.Context, c ShiftCapacity) error

	InsertAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a *Appointment) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	UpsertSlotLimits(ctx context.Context, limits []SlotLimit) error

	InsertEvent(ctx context.Context, ev EventLog) error
}

// Repository contains all store interactions needed by the engine.
type Repository interface {
	SlotReader

	// WithTx runs fn in one transaction, committing only when fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByDate(ctx context.Context, date string) ([]Appointment, error)
	ListAppointmentsByCompany(ctx context.Context, companyID string, limit, offset int) ([]Appointment, error)
	// ListArchivable returns terminal, non-archived appointments dated before the given day.
	ListArchivable(ctx context.Context, before string) ([]uuid.UUID, error)
	// CountOccupyingByDate returns per-slot occupancy for one day.
	CountOccupyingByDate(ctx context.Context, date string) (map[TimeSlot]int, error)

	InsertBlockedDate(ctx context.Context, b *BlockedDate) error
	DeleteBlockedDate(ctx context.Context, id uuid.UUID) error
	ListBlockedDates(ctx context.Context, from, to string) ([]BlockedDate, error)

	InsertBlockedTimeSlot(ctx context.Context, b *BlockedTimeSlot) error
	DeleteBlockedTimeSlot(ctx context.Context, id uuid.UUID) error
	ListBlockedTimeSlots(ctx context.Context, date string) ([]BlockedTimeSlot, error)

	// GetShiftCapacity returns nil when no booking has touched the date yet.
	GetShiftCapacity(ctx context.Context, date string) (*ShiftCapacity, error)
}
