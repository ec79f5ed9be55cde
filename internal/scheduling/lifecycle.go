package scheduling

import (
	"fmt"
	"time"
)

// SideEffect names a field change applied together with a status change.
type SideEffect string

const (
	EffectCompletedAtStamped SideEffect = "completed_at_stamped"
	EffectCanceledAtStamped  SideEffect = "canceled_at_stamped"
	EffectAttachmentCleared  SideEffect = "attachment_cleared"
	EffectAttachmentSet      SideEffect = "attachment_set"
	EffectSlotReleased       SideEffect = "slot_released"
)

// transitions is the standard transition table. ARCHIVED is not reachable
// from here; see Archive.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusCompleted, StatusCanceled, StatusNoShow},
	StatusCompleted: nil,
	StatusCanceled:  nil,
	StatusNoShow:    nil,
	StatusArchived:  nil,
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanManageAttachments: files belong to pending appointments only.
func CanManageAttachments(status AppointmentStatus) bool {
	return status == StatusScheduled
}

// Transition applies one standard status change and every side effect tied to
// it. The input is not modified.
func Transition(a Appointment, to AppointmentStatus, actor Actor, now time.Time) (Appointment, []SideEffect, error) {
	if !CanTransition(a.Status, to) {
		return a, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, a.Status, to)
	}

	var effects []SideEffect
	from := a.Status
	a.Status = to
	a.UpdatedAt = now

	switch to {
	case StatusCompleted:
		stamped := now
		a.CompletedAt = &stamped
		effects = append(effects, EffectCompletedAtStamped)
	case StatusCanceled:
		stamped := now
		a.CanceledAt = &stamped
		a.CanceledBy = &CanceledBy{ActorID: actor.ID, Role: actor.Role}
		effects = append(effects, EffectCanceledAtStamped)
	}

	if from == StatusScheduled && to != StatusScheduled && a.Attachment != nil {
		a.Attachment = nil
		effects = append(effects, EffectAttachmentCleared)
	}

	return a, effects, nil
}

// Archive moves a terminal appointment into ARCHIVED for housekeeping.
// Scheduled appointments have to be resolved first.
func Archive(a Appointment, now time.Time) (Appointment, []SideEffect, error) {
	switch a.Status {
	case StatusCompleted, StatusCanceled, StatusNoShow:
	default:
		return a, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, a.Status, StatusArchived)
	}
	a.Status = StatusArchived
	a.UpdatedAt = now
	return a, nil, nil
}
