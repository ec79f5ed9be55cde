package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-capacity-scheduling/internal/config"
)

// SlotLocker guards the booking critical section of one (date, slot) across
// instances. The store transaction already serializes it; the lock keeps
// contending instances from piling up inside the database.
type SlotLocker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// ErrLockNotAcquired is what lockers return when the wait runs out. The
// service maps it to ErrSlotBeingBooked.
var ErrLockNotAcquired = errors.New("slot lock not acquired")

type Service struct {
	repo      Repository
	locker    SlotLocker
	publisher EventPublisher
	limits    *LimitTable
	ledger    *ShiftLedger
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher fans committed events out to p.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(repo Repository, locker SlotLocker, cfg config.Config, opts ...Option) (*Service, error) {
	limits, err := NewLimitTable(DefaultLimitCurve)
	if err != nil {
		return nil, err
	}

	s := &Service{
		repo:   repo,
		locker: locker,
		limits: limits,
		ledger: &ShiftLedger{
			MorningCapacity:   cfg.MorningCapacity,
			AfternoonCapacity: cfg.AfternoonCapacity,
			EnforceCeiling:    cfg.ShiftCeilingEnforced,
			Limits:            limits,
		},
		loc: cfg.Location(),
		now: time.Now,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Location is the clinic time zone every date key is expressed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(DateLayout)
}

// CreateAppointment validates a booking and, inside one transaction guarded by
// the (date, slot) lock, checks availability, inserts the appointment and
// reserves the shift ledger. A rejected booking leaves nothing behind.
func (s *Service) CreateAppointment(ctx context.Context, actor Actor, in NewAppointmentInput) (*Appointment, error) {
	appt, err := s.buildAppointment(actor, in)
	if err != nil {
		return nil, err
	}

	lockKey := fmt.Sprintf("%s:%s", appt.DateKey, appt.TimeSlot)

	err = s.locker.WithSlotLock(ctx, lockKey, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(ctx context.Context, tx Tx) error {
			if err := tx.LockSlot(ctx, appt.DateKey, appt.TimeSlot); err != nil {
				return fmt.Errorf("lock slot: %w", err)
			}

			avail, err := s.evaluate(ctx, tx, appt.DateKey, appt.TimeSlot)
			if err != nil {
				return err
			}
			if !avail.Available {
				return newCapacityError(avail)
			}

			if err := tx.InsertAppointment(ctx, appt); err != nil {
				return fmt.Errorf("insert appointment: %w", err)
			}

			if err := s.ledger.Reserve(ctx, tx, appt.DateKey, appt.Shift); err != nil {
				return err
			}

			return s.recordEvent(ctx, tx, appt.ID, EventAppointmentCreated, map[string]any{
				"company_id": appt.CompanyID,
				"date":       appt.DateKey,
				"time_slot":  appt.TimeSlot.String(),
				"shift":      appt.Shift,
				"current":    avail.Current + 1,
				"limit":      avail.Limit,
			})
		})
	})
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("date", appt.DateKey).
		Str("time_slot", appt.TimeSlot.String()).
		Msg("appointment booked")
	s.publish(ctx, appt.ID, EventAppointmentCreated)

	return appt, nil
}

// buildAppointment runs every validation that does not need the store.
func (s *Service) buildAppointment(actor Actor, in NewAppointmentInput) (*Appointment, error) {
	switch {
	case in.CompanyID == "":
		return nil, invalid("company_id", "is required")
	case in.EmployeeID == "":
		return nil, invalid("employee_id", "is required")
	case in.ExamTypeID == "":
		return nil, invalid("exam_type_id", "is required")
	case in.ScheduledAt.IsZero():
		return nil, invalid("scheduled_at", "is required")
	}

	if in.Status == "" {
		in.Status = StatusScheduled
	}
	if in.Status != StatusScheduled {
		return nil, invalid("status", "new appointments must be %s, got %q", StatusScheduled, in.Status)
	}

	if !actor.IsClinic() && actor.CompanyID != in.CompanyID {
		return nil, ErrForbidden
	}

	date, slot, aligned := SlotOf(in.ScheduledAt, s.loc)
	if !aligned || !slot.WithinBusinessHours() {
		return nil, invalid("scheduled_at", "%s %s is outside business hours (%s-%s every %d minutes)",
			date, slot, OpeningSlot, ClosingSlot, SlotStep)
	}
	if date < s.today() {
		return nil, invalid("scheduled_at", "date %s is in the past", date)
	}
	if in.HasAdditionalExams && !slot.WithinAdditionalExamsWindow() {
		return nil, invalid("scheduled_at", "additional exams must be scheduled between %s and %s",
			OpeningSlot, AdditionalExamsLast)
	}

	now := s.now()
	scheduledAt := in.ScheduledAt.In(s.loc)
	return &Appointment{
		ID:                 uuid.New(),
		CompanyID:          in.CompanyID,
		EmployeeID:         in.EmployeeID,
		ExamTypeID:         in.ExamTypeID,
		ScheduledAt:        scheduledAt,
		Status:             StatusScheduled,
		HasAdditionalExams: in.HasAdditionalExams,
		Sector:             in.Sector,
		Description:        in.Description,
		CreatedAt:          now,
		UpdatedAt:          now,
		DateKey:            date,
		TimeSlot:           slot,
		Hour:               slot.Hour(),
		YearMonth:          scheduledAt.Format("2006-01"),
		Shift:              slot.Shift(),
	}, nil
}

// ChangeStatus moves an appointment through the standard transition table.
func (s *Service) ChangeStatus(ctx context.Context, actor Actor, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	if !to.Valid() {
		return nil, invalid("status", "unknown status %q", to)
	}
	return s.mutate(ctx, id, EventStatusChanged, func(a Appointment) (Appointment, []SideEffect, error) {
		if err := authorizeTransition(actor, &a, to); err != nil {
			return a, nil, err
		}
		return Transition(a, to, actor, s.now())
	})
}

// CancelAppointment is the restricted path a booking company uses; clinic
// staff may use it as well.
func (s *Service) CancelAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	return s.ChangeStatus(ctx, actor, id, StatusCanceled)
}

// ArchiveAppointment is the administrative path into ARCHIVED.
func (s *Service) ArchiveAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	if !actor.IsClinic() {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, id, EventAppointmentArchived, func(a Appointment) (Appointment, []SideEffect, error) {
		return Archive(a, s.now())
	})
}

// ArchiveBefore archives every terminal appointment dated before the given
// day and reports how many were archived. Appointments that change state
// concurrently are skipped.
func (s *Service) ArchiveBefore(ctx context.Context, before string) (int, error) {
	before, err := ParseDate(before)
	if err != nil {
		return 0, invalid("before", "%v", err)
	}

	ids, err := s.repo.ListArchivable(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("list archivable appointments: %w", err)
	}

	system := Actor{ID: "archive-worker", Role: RoleClinic}
	archived := 0
	for _, id := range ids {
		if _, err := s.ArchiveAppointment(ctx, system, id); err != nil {
			if errors.Is(err, ErrInvalidStatusTransition) || errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			return archived, fmt.Errorf("archive appointment %s: %w", id, err)
		}
		archived++
	}
	return archived, nil
}

// AttachFile stores an opaque file reference on a scheduled appointment.
func (s *Service) AttachFile(ctx context.Context, actor Actor, id uuid.UUID, att Attachment) (*Appointment, error) {
	if att.URL == "" {
		return nil, invalid("url", "is required")
	}
	if att.Name == "" {
		return nil, invalid("name", "is required")
	}
	return s.mutate(ctx, id, EventAttachmentChanged, func(a Appointment) (Appointment, []SideEffect, error) {
		if err := authorizeOwner(actor, &a); err != nil {
			return a, nil, err
		}
		if !CanManageAttachments(a.Status) {
			return a, nil, ErrAttachmentNotAllowed
		}
		a.Attachment = &Attachment{URL: att.URL, Name: att.Name}
		a.UpdatedAt = s.now()
		return a, []SideEffect{EffectAttachmentSet}, nil
	})
}

// DetachFile removes the file reference of a scheduled appointment.
func (s *Service) DetachFile(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	return s.mutate(ctx, id, EventAttachmentChanged, func(a Appointment) (Appointment, []SideEffect, error) {
		if err := authorizeOwner(actor, &a); err != nil {
			return a, nil, err
		}
		if !CanManageAttachments(a.Status) {
			return a, nil, ErrAttachmentNotAllowed
		}
		a.Attachment = nil
		a.UpdatedAt = s.now()
		return a, []SideEffect{EffectAttachmentCleared}, nil
	})
}

// mutate loads an appointment for update, applies fn and persists the result,
// releasing its seat in the shift ledger when it stops occupying the slot.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, eventType string, fn func(a Appointment) (Appointment, []SideEffect, error)) (*Appointment, error) {
	var updated *Appointment

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from := current.Status

		next, effects, err := fn(*current)
		if err != nil {
			return err
		}
		appt := &next

		if from.Occupying() && !appt.Status.Occupying() {
			if err := s.ledger.Release(ctx, tx, appt.DateKey, appt.Shift); err != nil {
				return err
			}
			effects = append(effects, EffectSlotReleased)
		}

		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}

		updated = appt
		return s.recordEvent(ctx, tx, appt.ID, eventType, map[string]any{
			"from":         from,
			"to":           appt.Status,
			"side_effects": effects,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, updated.ID, eventType)
	return updated, nil
}

// DeleteAppointment physically removes an appointment. Administrative only.
func (s *Service) DeleteAppointment(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.IsClinic() {
		return ErrForbidden
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if appt.Status.Occupying() {
			if err := s.ledger.Release(ctx, tx, appt.DateKey, appt.Shift); err != nil {
				return err
			}
		}
		if err := tx.DeleteAppointment(ctx, id); err != nil {
			return fmt.Errorf("delete appointment: %w", err)
		}
		return s.recordEvent(ctx, tx, id, EventAppointmentDeleted, map[string]any{
			"status":     appt.Status,
			"deleted_by": actor.ID,
		})
	})
	if err != nil {
		return err
	}

	s.publish(ctx, id, EventAppointmentDeleted)
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(actor, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// ListAppointmentsByDate is a clinic view of one day.
func (s *Service) ListAppointmentsByDate(ctx context.Context, date string) ([]Appointment, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, invalid("date", "%v", err)
	}
	appts, err := s.repo.ListAppointmentsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by date: %w", err)
	}
	return appts, nil
}

// ListAppointmentsByCompany retrieves appointments booked by one company.
func (s *Service) ListAppointmentsByCompany(ctx context.Context, companyID string, limit, offset int) ([]Appointment, error) {
	if companyID == "" {
		return nil, invalid("company_id", "is required")
	}
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListAppointmentsByCompany(ctx, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by company: %w", err)
	}
	return appts, nil
}

// authorizeOwner hides other companies' appointments: they read as missing,
// so a company cannot tell which ids exist.
func authorizeOwner(actor Actor, a *Appointment) error {
	if actor.IsClinic() {
		return nil
	}
	if actor.Role == RoleCompany && actor.CompanyID != "" && actor.CompanyID == a.CompanyID {
		return nil
	}
	return ErrAppointmentNotFound
}

// authorizeTransition: companies may only cancel their own appointments.
func authorizeTransition(actor Actor, a *Appointment, to AppointmentStatus) error {
	if actor.IsClinic() {
		return nil
	}
	if err := authorizeOwner(actor, a); err != nil {
		return err
	}
	if to != StatusCanceled {
		return ErrForbidden
	}
	return nil
}
