package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventsChannel carries committed appointment events.
const EventsChannel = "clinic:appointments"

// Event is the message published on EventsChannel.
type Event struct {
	EventType     string    `json:"event_type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PublishedAt   time.Time `json:"published_at"`
}

type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client, channel: EventsChannel}
}

func (p *Publisher) PublishEvent(ctx context.Context, eventType string, appointmentID uuid.UUID) error {
	msg, err := json.Marshal(Event{
		EventType:     eventType,
		AppointmentID: appointmentID,
		PublishedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}
