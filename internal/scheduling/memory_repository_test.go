package scheduling

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_RollbackOnError(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	boom := errors.New("boom")

	appt := &Appointment{ID: uuid.New(), DateKey: testTomorrow, TimeSlot: OpeningSlot, Status: StatusScheduled}
	err := repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.InsertAppointment(ctx, appt))
		require.NoError(t, tx.UpsertSlotLimits(ctx, []SlotLimit{{TimeSlot: OpeningSlot, Limit: 9}}))

		n, err := tx.CountOccupying(ctx, testTomorrow, OpeningSlot)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "tx sees its own writes")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetAppointmentByID(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, ok, err := repo.GetSlotLimit(ctx, OpeningSlot)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	appt := &Appointment{
		ID:         uuid.New(),
		Status:     StatusScheduled,
		Attachment: &Attachment{URL: "https://f.example/a", Name: "a"},
	}
	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertAppointment(ctx, appt)
	}))
	appt.Attachment.Name = "changed by caller"

	got, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Attachment.Name)

	got.Attachment.Name = "changed again"
	again, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Attachment.Name)
}

func TestMemoryRepository_ShiftCapacityRow(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	c, err := repo.GetShiftCapacity(ctx, testTomorrow)
	require.NoError(t, err)
	assert.Nil(t, c)

	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		row, err := tx.LockShiftCapacity(ctx, ShiftCapacity{Date: testTomorrow, MorningCapacity: 10, AfternoonCapacity: 5})
		require.NoError(t, err)
		row.MorningBooked = 1
		return tx.SaveShiftCapacity(ctx, row)
	}))

	// an existing row keeps its capacities
	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		row, err := tx.LockShiftCapacity(ctx, ShiftCapacity{Date: testTomorrow, MorningCapacity: 99})
		require.NoError(t, err)
		assert.Equal(t, 10, row.MorningCapacity)
		assert.Equal(t, 1, row.MorningBooked)
		return nil
	}))
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := repo.WithTx(ctx, func(context.Context, Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
