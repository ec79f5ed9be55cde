package scheduling

import (
	"errors"
	"fmt"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrBlockedDateNotFound     = errors.New("blocked date not found")
	ErrBlockedSlotNotFound     = errors.New("blocked time slot not found")
	ErrDuplicate               = errors.New("already blocked")
	ErrSlotUnavailable         = errors.New("slot unavailable")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrAttachmentNotAllowed    = errors.New("attachments can only be managed while the appointment is scheduled")
	ErrForbidden               = errors.New("operation not allowed for this actor")
	ErrLedgerUnderflow         = errors.New("shift ledger would go negative")
)

// ValidationError is returned before the store is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type UnavailableReason string

const (
	ReasonBusinessHours UnavailableReason = "business_hours"
	ReasonDateBlocked   UnavailableReason = "date_blocked"
	ReasonSlotBlocked   UnavailableReason = "slot_blocked"
	ReasonNoCapacity    UnavailableReason = "no_capacity"
	ReasonSlotFull      UnavailableReason = "slot_full"
	ReasonShiftFull     UnavailableReason = "shift_full"
)

// CapacityError explains why a slot cannot take another booking.
type CapacityError struct {
	Reason  UnavailableReason
	Message string
	Current int
	Limit   int
}

func (e *CapacityError) Error() string {
	return e.Message
}

func (e *CapacityError) Unwrap() error {
	return ErrSlotUnavailable
}

func newCapacityError(a SlotAvailability) *CapacityError {
	return &CapacityError{
		Reason:  a.Reason,
		Message: a.Message,
		Current: a.Current,
		Limit:   a.Limit,
	}
}
