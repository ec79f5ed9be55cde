package scheduling

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	EventAppointmentCreated  = "APPOINTMENT_CREATED"
	EventStatusChanged       = "APPOINTMENT_STATUS_CHANGED"
	EventAttachmentChanged   = "APPOINTMENT_ATTACHMENT_CHANGED"
	EventAppointmentArchived = "APPOINTMENT_ARCHIVED"
	EventAppointmentDeleted  = "APPOINTMENT_DELETED"
)

// EventPublisher fans committed appointment events out to other processes.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, appointmentID uuid.UUID) error
}

// recordEvent writes the event log row inside the caller's transaction, so
// the log never disagrees with the state it describes.
func (s *Service) recordEvent(ctx context.Context, tx Tx, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if err := tx.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// publish is best effort; the event log row is already committed.
func (s *Service) publish(ctx context.Context, appointmentID uuid.UUID, eventType string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, eventType, appointmentID); err != nil {
		s.log.Warn().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to publish event")
	}
}
