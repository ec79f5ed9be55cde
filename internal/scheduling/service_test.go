package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-capacity-scheduling/internal/config"
)

func requireCapacityReason(t *testing.T, err error, reason UnavailableReason) {
	t.Helper()
	var cerr *CapacityError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, reason, cerr.Reason)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, field, verr.Field)
}

func TestCreateAppointment_FillsSlotUpToLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setLimit(t, "08:00", 2)

	first := env.book(t, clinicActor, testTomorrow, "08:00")
	env.book(t, clinicActor, testTomorrow, "08:00")

	assert.Equal(t, StatusScheduled, first.Status)
	assert.Equal(t, testTomorrow, first.DateKey)
	assert.Equal(t, "08:00", first.TimeSlot.String())
	assert.Equal(t, 8, first.Hour)
	assert.Equal(t, "2025-06", first.YearMonth)
	assert.Equal(t, ShiftMorning, first.Shift)

	_, err := env.svc.CreateAppointment(ctx, clinicActor, env.input(t, "acme", testTomorrow, "08:00"))
	requireCapacityReason(t, err, ReasonSlotFull)

	avail, err := env.svc.CheckAvailability(ctx, testTomorrow, "08:00")
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, 2, avail.Current)
	assert.Equal(t, 2, avail.Limit)
	assert.Equal(t, 1.0, avail.OccupancyRate)
	assert.Equal(t, "slot full (2/2)", avail.Message)
}

func TestCreateAppointment_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		edit  func(in *NewAppointmentInput)
		field string
	}{
		{"missing company", func(in *NewAppointmentInput) { in.CompanyID = "" }, "company_id"},
		{"missing employee", func(in *NewAppointmentInput) { in.EmployeeID = "" }, "employee_id"},
		{"missing exam type", func(in *NewAppointmentInput) { in.ExamTypeID = "" }, "exam_type_id"},
		{"missing time", func(in *NewAppointmentInput) { in.ScheduledAt = time.Time{} }, "scheduled_at"},
		{"non scheduled status", func(in *NewAppointmentInput) { in.Status = StatusCompleted }, "status"},
		{"off grid", func(in *NewAppointmentInput) { in.ScheduledAt = in.ScheduledAt.Add(10 * time.Minute) }, "scheduled_at"},
		{"seconds", func(in *NewAppointmentInput) { in.ScheduledAt = in.ScheduledAt.Add(30 * time.Second) }, "scheduled_at"},
		{"after closing", func(in *NewAppointmentInput) { in.ScheduledAt = in.ScheduledAt.Add(10 * time.Hour) }, "scheduled_at"},
		{"past date", func(in *NewAppointmentInput) { in.ScheduledAt = in.ScheduledAt.AddDate(0, 0, -2) }, "scheduled_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := env.input(t, "acme", testTomorrow, "08:00")
			tt.edit(&in)
			_, err := env.svc.CreateAppointment(ctx, clinicActor, in)
			requireValidation(t, err, tt.field)
		})
	}

	// nothing was written
	counts, err := env.repo.CountOccupyingByDate(ctx, testTomorrow)
	require.NoError(t, err)
	assert.Empty(t, counts)
	assert.Empty(t, env.repo.Events())
}

func TestCreateAppointment_SameDayAllowed(t *testing.T) {
	env := newTestEnv(t)

	// the clock is 08:00; the date check ignores the time of day
	appt := env.book(t, clinicActor, testToday, "07:00")
	assert.Equal(t, testToday, appt.DateKey)
}

func TestCreateAppointment_AdditionalExamsWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := env.input(t, "acme", testTomorrow, "13:00")
	in.HasAdditionalExams = true
	_, err := env.svc.CreateAppointment(ctx, clinicActor, in)
	requireValidation(t, err, "scheduled_at")

	in = env.input(t, "acme", testTomorrow, "12:00")
	in.HasAdditionalExams = true
	appt, err := env.svc.CreateAppointment(ctx, clinicActor, in)
	require.NoError(t, err)
	assert.True(t, appt.HasAdditionalExams)

	// the same afternoon slot is fine without additional exams
	env.book(t, clinicActor, testTomorrow, "13:00")
}

func TestCreateAppointment_BlocksAndZeroLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.AddBlockedDate(ctx, "2025-06-11", "inventory")
	require.NoError(t, err)
	_, err = env.svc.AddBlockedTimeSlot(ctx, testTomorrow, "09:00", "fire drill")
	require.NoError(t, err)
	env.setLimit(t, "10:00", 0)

	_, err = env.svc.CreateAppointment(ctx, clinicActor, env.input(t, "acme", "2025-06-11", "08:00"))
	requireCapacityReason(t, err, ReasonDateBlocked)

	_, err = env.svc.CreateAppointment(ctx, clinicActor, env.input(t, "acme", testTomorrow, "09:00"))
	requireCapacityReason(t, err, ReasonSlotBlocked)

	_, err = env.svc.CreateAppointment(ctx, clinicActor, env.input(t, "acme", testTomorrow, "10:00"))
	requireCapacityReason(t, err, ReasonNoCapacity)

	// neighbouring slot is unaffected
	env.book(t, clinicActor, testTomorrow, "09:15")
}

func TestCreateAppointment_ConcurrentBookingsNeverExceedLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setLimit(t, "10:00", 3)

	const attempts = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		booked   int
		rejected int
		start    = make(chan struct{})
	)
	for i := 0; i < attempts; i++ {
		in := env.input(t, "acme", testTomorrow, "10:00")
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.svc.CreateAppointment(ctx, acmeActor, in)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrSlotBeingBooked):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 3, booked)
	assert.Equal(t, attempts-3, rejected)

	n, err := env.repo.CountOccupying(ctx, testTomorrow, mustSlot(t, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	capacity, err := env.svc.GetShiftCapacity(ctx, testTomorrow)
	require.NoError(t, err)
	assert.Equal(t, 3, capacity.MorningBooked)
}

func TestCreateAppointment_ZeroLockWait(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.LockWait = 0 })

	appt := env.book(t, acmeActor, testTomorrow, "08:00")
	assert.Equal(t, StatusScheduled, appt.Status)
}

func TestCancel_FreesTheSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setLimit(t, "15:00", 1)

	appt := env.book(t, acmeActor, testTomorrow, "15:00")
	_, err := env.svc.CreateAppointment(ctx, acmeActor, env.input(t, "acme", testTomorrow, "15:00"))
	requireCapacityReason(t, err, ReasonSlotFull)

	canceled, err := env.svc.CancelAppointment(ctx, acmeActor, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, canceled.Status)
	require.NotNil(t, canceled.CanceledAt)
	assert.Equal(t, &CanceledBy{ActorID: "hr-acme", Role: RoleCompany}, canceled.CanceledBy)

	env.book(t, acmeActor, testTomorrow, "15:00")

	capacity, err := env.svc.GetShiftCapacity(ctx, testTomorrow)
	require.NoError(t, err)
	assert.Equal(t, 1, capacity.AfternoonBooked)
}

func TestCompletedStillOccupies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setLimit(t, "07:00", 1)

	appt := env.book(t, clinicActor, testTomorrow, "07:00")
	done, err := env.svc.ChangeStatus(ctx, clinicActor, appt.ID, StatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)

	_, err = env.svc.CreateAppointment(ctx, clinicActor, env.input(t, "acme", testTomorrow, "07:00"))
	requireCapacityReason(t, err, ReasonSlotFull)

	_, err = env.svc.ChangeStatus(ctx, clinicActor, appt.ID, StatusCanceled)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestNoShowReleasesSeat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setLimit(t, "07:00", 1)

	appt := env.book(t, clinicActor, testTomorrow, "07:00")
	_, err := env.svc.ChangeStatus(ctx, clinicActor, appt.ID, StatusNoShow)
	require.NoError(t, err)

	env.book(t, clinicActor, testTomorrow, "07:00")
}

func TestRoleRestrictions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// companies book only for themselves
	_, err := env.svc.CreateAppointment(ctx, acmeActor, env.input(t, "globex", testTomorrow, "08:00"))
	assert.ErrorIs(t, err, ErrForbidden)

	appt := env.book(t, acmeActor, testTomorrow, "08:00")

	// another company's appointment reads exactly like a missing one
	_, err = env.svc.CancelAppointment(ctx, globexActor, appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = env.svc.GetAppointment(ctx, globexActor, appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, missingErr := env.svc.GetAppointment(ctx, globexActor, uuid.New())
	assert.Equal(t, missingErr, err)

	_, err = env.svc.ChangeStatus(ctx, globexActor, appt.ID, StatusCompleted)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = env.svc.ChangeStatus(ctx, acmeActor, appt.ID, StatusCompleted)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.ArchiveAppointment(ctx, acmeActor, appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, env.svc.DeleteAppointment(ctx, acmeActor, appt.ID), ErrForbidden)

	got, err := env.svc.GetAppointment(ctx, acmeActor, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, got.Status)
}

func TestChangeStatus_UnknownStatusAndMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	appt := env.book(t, clinicActor, testTomorrow, "08:00")

	_, err := env.svc.ChangeStatus(ctx, clinicActor, appt.ID, "rescheduled")
	requireValidation(t, err, "status")

	_, err = env.svc.ChangeStatus(ctx, clinicActor, uuid.New(), StatusCompleted)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	// archive goes through its own path only
	_, err = env.svc.ChangeStatus(ctx, clinicActor, appt.ID, StatusArchived)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestAttachments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	appt := env.book(t, acmeActor, testTomorrow, "08:00")
	file := Attachment{URL: "https://files.example/guide.pdf", Name: "guide.pdf"}

	_, err := env.svc.AttachFile(ctx, acmeActor, appt.ID, Attachment{Name: "guide.pdf"})
	requireValidation(t, err, "url")

	_, err = env.svc.AttachFile(ctx, globexActor, appt.ID, file)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	withFile, err := env.svc.AttachFile(ctx, acmeActor, appt.ID, file)
	require.NoError(t, err)
	assert.Equal(t, &file, withFile.Attachment)

	detached, err := env.svc.DetachFile(ctx, acmeActor, appt.ID)
	require.NoError(t, err)
	assert.Nil(t, detached.Attachment)

	_, err = env.svc.AttachFile(ctx, acmeActor, appt.ID, file)
	require.NoError(t, err)

	done, err := env.svc.ChangeStatus(ctx, clinicActor, appt.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Nil(t, done.Attachment, "leaving scheduled clears the attachment")

	_, err = env.svc.AttachFile(ctx, clinicActor, appt.ID, file)
	assert.ErrorIs(t, err, ErrAttachmentNotAllowed)
	_, err = env.svc.DetachFile(ctx, clinicActor, appt.ID)
	assert.ErrorIs(t, err, ErrAttachmentNotAllowed)
}

func TestShiftLedgerMatchesDayStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, slot := range []string{"06:30", "06:30", "09:00", "11:45", "12:00", "14:30", "16:45"} {
		ids = append(ids, env.book(t, clinicActor, testTomorrow, slot).ID)
	}
	_, err := env.svc.CancelAppointment(ctx, clinicActor, ids[0])
	require.NoError(t, err)
	_, err = env.svc.ChangeStatus(ctx, clinicActor, ids[4], StatusCompleted)
	require.NoError(t, err)
	_, err = env.svc.ChangeStatus(ctx, clinicActor, ids[5], StatusNoShow)
	require.NoError(t, err)
	require.NoError(t, env.svc.DeleteAppointment(ctx, clinicActor, ids[6]))

	stats, err := env.svc.GetDaySlotStats(ctx, testTomorrow)
	require.NoError(t, err)
	capacity, err := env.svc.GetShiftCapacity(ctx, testTomorrow)
	require.NoError(t, err)

	assert.Equal(t, 3, capacity.MorningBooked)
	assert.Equal(t, 1, capacity.AfternoonBooked)
	assert.Equal(t, stats.BookedByShift[ShiftMorning], capacity.MorningBooked)
	assert.Equal(t, stats.BookedByShift[ShiftAfternoon], capacity.AfternoonBooked)
	assert.Equal(t, 4, stats.TotalBooked)
}

func TestShiftCeiling(t *testing.T) {
	enforce := func(c *config.Config) {
		c.MorningCapacity = 2
		c.ShiftCeilingEnforced = true
	}
	env := newTestEnv(t, enforce)
	ctx := context.Background()

	env.book(t, clinicActor, testTomorrow, "07:00")
	env.book(t, clinicActor, testTomorrow, "08:00")

	_, err := env.svc.CreateAppointment(ctx, clinicActor, env.input(t, "acme", testTomorrow, "09:00"))
	requireCapacityReason(t, err, ReasonShiftFull)

	// afternoon has its own ceiling
	env.book(t, clinicActor, testTomorrow, "13:00")

	// a rejected booking leaves no appointment behind
	stats, err := env.svc.GetDaySlotStats(ctx, testTomorrow)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.BookedByShift[ShiftMorning])
}

func TestShiftCapacity_DerivedFromSlotLimits(t *testing.T) {
	// the fixed ceilings only apply when enforced
	env := newTestEnv(t, func(c *config.Config) { c.MorningCapacity = 1 })
	ctx := context.Background()

	env.book(t, clinicActor, testTomorrow, "07:00")
	env.book(t, clinicActor, testTomorrow, "08:00")

	capacity, err := env.svc.GetShiftCapacity(ctx, testTomorrow)
	require.NoError(t, err)
	assert.Equal(t, 2, capacity.MorningBooked)
	assert.Equal(t, 86, capacity.MorningCapacity)
	assert.Equal(t, 36, capacity.AfternoonCapacity)

	env.setLimit(t, "16:00", 0)
	capacity, err = env.svc.GetShiftCapacity(ctx, testTomorrow)
	require.NoError(t, err)
	assert.Equal(t, 35, capacity.AfternoonCapacity)
}

func TestShiftCapacity_FullShiftStaysWithinCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	limits, err := env.svc.ListLimits(ctx)
	require.NoError(t, err)

	bookings := 0
	for _, l := range limits {
		if l.TimeSlot.Shift() != ShiftMorning {
			continue
		}
		for i := 0; i < l.Limit; i++ {
			env.book(t, clinicActor, testTomorrow, l.TimeSlot.String())
			bookings++
		}
	}
	assert.Equal(t, 86, bookings)

	capacity, err := env.svc.GetShiftCapacity(ctx, testTomorrow)
	require.NoError(t, err)
	assert.Equal(t, 86, capacity.MorningBooked)
	assert.LessOrEqual(t, capacity.MorningBooked, capacity.MorningCapacity)

	_, err = env.svc.CreateAppointment(ctx, clinicActor, env.input(t, "acme", testTomorrow, "11:45"))
	requireCapacityReason(t, err, ReasonSlotFull)
}

func TestShiftCapacity_LoweredLimitsKeepBookings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.book(t, clinicActor, testTomorrow, "07:00")
	env.book(t, clinicActor, testTomorrow, "07:00")
	env.book(t, clinicActor, testTomorrow, "07:00")

	var closed []SlotLimitInput
	for _, slot := range GridSlots() {
		if slot.Shift() == ShiftMorning {
			closed = append(closed, SlotLimitInput{TimeSlot: slot.String(), Limit: 0})
		}
	}
	_, err := env.svc.SaveLimits(ctx, closed)
	require.NoError(t, err)

	capacity, err := env.svc.GetShiftCapacity(ctx, testTomorrow)
	require.NoError(t, err)
	assert.Equal(t, 3, capacity.MorningBooked)
	assert.Equal(t, 3, capacity.MorningCapacity)

	_, err = env.svc.CancelAppointment(ctx, clinicActor, first.ID)
	require.NoError(t, err)

	capacity, err = env.svc.GetShiftCapacity(ctx, testTomorrow)
	require.NoError(t, err)
	assert.Equal(t, 2, capacity.MorningBooked)
	assert.LessOrEqual(t, capacity.MorningBooked, capacity.MorningCapacity)
}

func TestGetShiftCapacity_Defaults(t *testing.T) {
	env := newTestEnv(t)

	capacity, err := env.svc.GetShiftCapacity(context.Background(), "2025-07-01")
	require.NoError(t, err)
	assert.Equal(t, ShiftCapacity{Date: "2025-07-01", MorningCapacity: 86, AfternoonCapacity: 36}, capacity)
}

func TestArchiveAppointment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	done := env.book(t, clinicActor, testTomorrow, "08:00")
	done, err := env.svc.ChangeStatus(ctx, clinicActor, done.ID, StatusCompleted)
	require.NoError(t, err)
	pending := env.book(t, clinicActor, testTomorrow, "08:15")

	_, err = env.svc.ArchiveAppointment(ctx, clinicActor, pending.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	archived, err := env.svc.ArchiveAppointment(ctx, clinicActor, done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, archived.Status)
	assert.Equal(t, done.CompletedAt, archived.CompletedAt)

	// archiving a completed appointment gives its seat back
	capacity, err := env.svc.GetShiftCapacity(ctx, testTomorrow)
	require.NoError(t, err)
	assert.Equal(t, 1, capacity.MorningBooked)
}

func TestArchiveBefore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	completed := env.book(t, clinicActor, testTomorrow, "08:00")
	_, err := env.svc.ChangeStatus(ctx, clinicActor, completed.ID, StatusCompleted)
	require.NoError(t, err)
	canceled := env.book(t, clinicActor, testTomorrow, "08:15")
	_, err = env.svc.CancelAppointment(ctx, clinicActor, canceled.ID)
	require.NoError(t, err)
	pending := env.book(t, clinicActor, testTomorrow, "08:30")
	later := env.book(t, clinicActor, "2025-06-20", "08:00")
	_, err = env.svc.ChangeStatus(ctx, clinicActor, later.ID, StatusNoShow)
	require.NoError(t, err)

	n, err := env.svc.ArchiveBefore(ctx, "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for id, want := range map[uuid.UUID]AppointmentStatus{
		completed.ID: StatusArchived,
		canceled.ID:  StatusArchived,
		pending.ID:   StatusScheduled,
		later.ID:     StatusNoShow,
	} {
		got, err := env.svc.GetAppointment(ctx, clinicActor, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}

	n, err = env.svc.ArchiveBefore(ctx, "2025-06-15")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = env.svc.ArchiveBefore(ctx, "soon")
	requireValidation(t, err, "before")
}

func TestDeleteAppointment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setLimit(t, "08:00", 1)

	appt := env.book(t, clinicActor, testTomorrow, "08:00")
	require.NoError(t, env.svc.DeleteAppointment(ctx, clinicActor, appt.ID))

	_, err := env.svc.GetAppointment(ctx, clinicActor, appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.ErrorIs(t, env.svc.DeleteAppointment(ctx, clinicActor, appt.ID), ErrAppointmentNotFound)

	env.book(t, clinicActor, testTomorrow, "08:00")
}

func TestEventsRecordedAndPublished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	appt := env.book(t, acmeActor, testTomorrow, "08:00")
	_, err := env.svc.AttachFile(ctx, acmeActor, appt.ID, Attachment{URL: "https://f.example/a", Name: "a"})
	require.NoError(t, err)
	_, err = env.svc.CancelAppointment(ctx, acmeActor, appt.ID)
	require.NoError(t, err)

	// rejected operations leave no trace
	_, err = env.svc.CancelAppointment(ctx, acmeActor, appt.ID)
	require.Error(t, err)

	want := []string{EventAppointmentCreated, EventAttachmentChanged, EventStatusChanged}
	assert.Equal(t, want, env.pub.Events())

	logged := env.repo.Events()
	require.Len(t, logged, 3)
	for i, ev := range logged {
		assert.Equal(t, want[i], ev.EventType)
		assert.Equal(t, int64(i+1), ev.ID)
		require.NotNil(t, ev.AppointmentID)
		assert.Equal(t, appt.ID, *ev.AppointmentID)
	}

	var payload struct {
		From        AppointmentStatus `json:"from"`
		To          AppointmentStatus `json:"to"`
		SideEffects []SideEffect      `json:"side_effects"`
	}
	require.NoError(t, json.Unmarshal(logged[2].Payload, &payload))
	assert.Equal(t, StatusScheduled, payload.From)
	assert.Equal(t, StatusCanceled, payload.To)
	assert.ElementsMatch(t,
		[]SideEffect{EffectCanceledAtStamped, EffectAttachmentCleared, EffectSlotReleased},
		payload.SideEffects)
}

func TestListAppointments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, slot := range []string{"09:00", "07:00", "08:00"} {
		env.book(t, acmeActor, testTomorrow, slot)
		env.clock.Advance(time.Minute)
	}
	env.book(t, globexActor, testTomorrow, "07:30")
	env.book(t, acmeActor, "2025-06-12", "07:00")

	day, err := env.svc.ListAppointmentsByDate(ctx, testTomorrow)
	require.NoError(t, err)
	require.Len(t, day, 4)
	var slots []string
	for _, a := range day {
		slots = append(slots, a.TimeSlot.String())
	}
	assert.Equal(t, []string{"07:00", "07:30", "08:00", "09:00"}, slots)

	acme, err := env.svc.ListAppointmentsByCompany(ctx, "acme", 0, 0)
	require.NoError(t, err)
	require.Len(t, acme, 4)
	assert.Equal(t, "2025-06-12", acme[0].DateKey, "newest first")

	page, err := env.svc.ListAppointmentsByCompany(ctx, "acme", 2, 3)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	_, err = env.svc.ListAppointmentsByCompany(ctx, "", 10, 0)
	requireValidation(t, err, "company_id")
}

func TestSaveLimits_AllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.SaveLimits(ctx, []SlotLimitInput{
		{TimeSlot: "08:00", Limit: 4},
		{TimeSlot: "08:15", Limit: -1},
	})
	requireValidation(t, err, "limits[1].limit")

	limit, err := env.svc.GetLimit(ctx, "08:00")
	require.NoError(t, err)
	assert.Equal(t, 5, limit, "default curve still applies")

	saved, err := env.svc.SaveLimits(ctx, []SlotLimitInput{{TimeSlot: "08:00", Limit: 4}})
	require.NoError(t, err)
	assert.Len(t, saved, len(GridSlots()))

	limit, err = env.svc.GetLimit(ctx, "08:00")
	require.NoError(t, err)
	assert.Equal(t, 4, limit)

	limits, err := env.svc.ListLimits(ctx)
	require.NoError(t, err)
	configured := 0
	for _, l := range limits {
		if l.Configured {
			configured++
		}
	}
	assert.Equal(t, 1, configured)
}
