package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// queryable is what both the pool and an open transaction offer, so the
// slot reads are written once.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentColumns = `
	id, company_id, employee_id, exam_type_id, scheduled_at, status,
	has_additional_exams, attachment_url, attachment_name, sector, description,
	created_at, updated_at, completed_at, canceled_at, canceled_by_actor, canceled_by_role,
	date_key, time_slot, hour, year_month, shift`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a                        Appointment
		attURL, attName          *string
		canceledBy, canceledRole *string
		slot                     int
	)

	err := row.Scan(
		&a.ID,
		&a.CompanyID,
		&a.EmployeeID,
		&a.ExamTypeID,
		&a.ScheduledAt,
		&a.Status,
		&a.HasAdditionalExams,
		&attURL,
		&attName,
		&a.Sector,
		&a.Description,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CompletedAt,
		&a.CanceledAt,
		&canceledBy,
		&canceledRole,
		&a.DateKey,
		&slot,
		&a.Hour,
		&a.YearMonth,
		&a.Shift,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.TimeSlot = TimeSlot(slot)
	if attURL != nil {
		a.Attachment = &Attachment{URL: *attURL}
		if attName != nil {
			a.Attachment.Name = *attName
		}
	}
	if canceledBy != nil {
		a.CanceledBy = &CanceledBy{ActorID: *canceledBy}
		if canceledRole != nil {
			a.CanceledBy.Role = Role(*canceledRole)
		}
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanShiftCapacity(row pgx.Row) (*ShiftCapacity, error) {
	var c ShiftCapacity
	err := row.Scan(
		&c.Date,
		&c.MorningCapacity,
		&c.MorningBooked,
		&c.AfternoonCapacity,
		&c.AfternoonBooked,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func attachmentColumns(a *Appointment) (url, name *string) {
	if a.Attachment == nil {
		return nil, nil
	}
	return &a.Attachment.URL, &a.Attachment.Name
}

func canceledByColumns(a *Appointment) (actor, role *string) {
	if a.CanceledBy == nil {
		return nil, nil
	}
	r := string(a.CanceledBy.Role)
	return &a.CanceledBy.ActorID, &r
}

func occupyingStatusNames() []string {
	names := make([]string, len(occupyingStatuses))
	for i, s := range occupyingStatuses {
		names[i] = string(s)
	}
	return names
}

// Slot reads shared by the pool and transactions

func isDateBlocked(ctx context.Context, q queryable, date string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM blocked_dates WHERE date = $1)
	`, date).Scan(&exists)
	return exists, err
}

func isTimeSlotBlocked(ctx context.Context, q queryable, date string, slot TimeSlot) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM blocked_time_slots WHERE date = $1 AND time_slot = $2)
	`, date, int(slot)).Scan(&exists)
	return exists, err
}

func getSlotLimit(ctx context.Context, q queryable, slot TimeSlot) (int, bool, error) {
	var limit int
	err := q.QueryRow(ctx, `
		SELECT max_appointments FROM slot_limits WHERE time_slot = $1
	`, int(slot)).Scan(&limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return limit, true, nil
}

func listSlotLimits(ctx context.Context, q queryable) ([]SlotLimit, error) {
	rows, err := q.Query(ctx, `
		SELECT time_slot, max_appointments, updated_at
		FROM slot_limits
		ORDER BY time_slot
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotLimit
	for rows.Next() {
		var (
			l    SlotLimit
			slot int
		)
		if err := rows.Scan(&slot, &l.Limit, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.TimeSlot = TimeSlot(slot)
		result = append(result, l)
	}
	return result, rows.Err()
}

func countOccupying(ctx context.Context, q queryable, date string, slot TimeSlot) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE date_key = $1
		  AND time_slot = $2
		  AND status = ANY($3)
	`, date, int(slot), occupyingStatusNames()).Scan(&n)
	return n, err
}

// Interface methods

func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

func (r *PgRepository) IsDateBlocked(ctx context.Context, date string) (bool, error) {
	return isDateBlocked(ctx, r.pool, date)
}

func (r *PgRepository) IsTimeSlotBlocked(ctx context.Context, date string, slot TimeSlot) (bool, error) {
	return isTimeSlotBlocked(ctx, r.pool, date, slot)
}

func (r *PgRepository) GetSlotLimit(ctx context.Context, slot TimeSlot) (int, bool, error) {
	return getSlotLimit(ctx, r.pool, slot)
}

func (r *PgRepository) CountOccupying(ctx context.Context, date string, slot TimeSlot) (int, error) {
	return countOccupying(ctx, r.pool, date, slot)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByDate(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date_key = $1
		ORDER BY time_slot, created_at
	`, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByCompany(ctx context.Context, companyID string, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE company_id = $1
		ORDER BY scheduled_at DESC, id
		LIMIT $2 OFFSET $3
	`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListArchivable(ctx context.Context, before string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id
		FROM appointments
		WHERE date_key < $1
		  AND status IN ('completed', 'canceled', 'no_show')
		ORDER BY date_key
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgRepository) CountOccupyingByDate(ctx context.Context, date string) (map[TimeSlot]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time_slot, count(*)
		FROM appointments
		WHERE date_key = $1
		  AND status = ANY($2)
		GROUP BY time_slot
	`, date, occupyingStatusNames())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[TimeSlot]int)
	for rows.Next() {
		var slot, n int
		if err := rows.Scan(&slot, &n); err != nil {
			return nil, err
		}
		counts[TimeSlot(slot)] = n
	}
	return counts, rows.Err()
}

func (r *PgRepository) ListSlotLimits(ctx context.Context) ([]SlotLimit, error) {
	return listSlotLimits(ctx, r.pool)
}

func (r *PgRepository) InsertBlockedDate(ctx context.Context, b *BlockedDate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blocked_dates (id, date, reason, created_at)
		VALUES ($1, $2, $3, $4)
	`, b.ID, b.Date, b.Reason, b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: date %s already blocked", ErrDuplicate, b.Date)
		}
		return fmt.Errorf("insert blocked date: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteBlockedDate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blocked_dates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete blocked date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockedDateNotFound
	}
	return nil
}

func (r *PgRepository) ListBlockedDates(ctx context.Context, from, to string) ([]BlockedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, date, reason, created_at
		FROM blocked_dates
		WHERE ($1 = '' OR date >= $1)
		  AND ($2 = '' OR date <= $2)
		ORDER BY date
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlockedDate
	for rows.Next() {
		var b BlockedDate
		if err := rows.Scan(&b.ID, &b.Date, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertBlockedTimeSlot(ctx context.Context, b *BlockedTimeSlot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blocked_time_slots (id, date, time_slot, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, b.ID, b.Date, int(b.TimeSlot), b.Reason, b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slot %s %s already blocked", ErrDuplicate, b.Date, b.TimeSlot)
		}
		return fmt.Errorf("insert blocked time slot: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteBlockedTimeSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blocked_time_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete blocked time slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockedSlotNotFound
	}
	return nil
}

func (r *PgRepository) ListBlockedTimeSlots(ctx context.Context, date string) ([]BlockedTimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, date, time_slot, reason, created_at
		FROM blocked_time_slots
		WHERE date = $1
		ORDER BY time_slot
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlockedTimeSlot
	for rows.Next() {
		var (
			b    BlockedTimeSlot
			slot int
		)
		if err := rows.Scan(&b.ID, &b.Date, &slot, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.TimeSlot = TimeSlot(slot)
		result = append(result, b)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetShiftCapacity(ctx context.Context, date string) (*ShiftCapacity, error) {
	c, err := scanShiftCapacity(r.pool.QueryRow(ctx, `
		SELECT date, morning_capacity, morning_booked, afternoon_capacity, afternoon_booked, updated_at
		FROM shift_capacity
		WHERE date = $1
	`, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// pgTx is the Tx of one pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) IsDateBlocked(ctx context.Context, date string) (bool, error) {
	return isDateBlocked(ctx, t.tx, date)
}

func (t *pgTx) IsTimeSlotBlocked(ctx context.Context, date string, slot TimeSlot) (bool, error) {
	return isTimeSlotBlocked(ctx, t.tx, date, slot)
}

func (t *pgTx) GetSlotLimit(ctx context.Context, slot TimeSlot) (int, bool, error) {
	return getSlotLimit(ctx, t.tx, slot)
}

func (t *pgTx) CountOccupying(ctx context.Context, date string, slot TimeSlot) (int, error) {
	return countOccupying(ctx, t.tx, date, slot)
}

func (t *pgTx) ListSlotLimits(ctx context.Context) ([]SlotLimit, error) {
	return listSlotLimits(ctx, t.tx)
}

// LockSlot takes a transaction-scoped advisory lock, released on commit or
// rollback.
func (t *pgTx) LockSlot(ctx context.Context, date string, slot TimeSlot) error {
	key := fmt.Sprintf("slot:%s:%s", date, slot)
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

func (t *pgTx) LockShiftCapacity(ctx context.Context, defaults ShiftCapacity) (ShiftCapacity, error) {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO shift_capacity (date, morning_capacity, morning_booked, afternoon_capacity, afternoon_booked, updated_at)
		VALUES ($1, $2, 0, $3, 0, now())
		ON CONFLICT (date) DO NOTHING
	`, defaults.Date, defaults.MorningCapacity, defaults.AfternoonCapacity)
	if err != nil {
		return ShiftCapacity{}, err
	}

	c, err := scanShiftCapacity(t.tx.QueryRow(ctx, `
		SELECT date, morning_capacity, morning_booked, afternoon_capacity, afternoon_booked, updated_at
		FROM shift_capacity
		WHERE date = $1
		FOR UPDATE
	`, defaults.Date))
	if err != nil {
		return ShiftCapacity{}, err
	}
	return *c, nil
}

func (t *pgTx) SaveShiftCapacity(ctx context.Context, c ShiftCapacity) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE shift_capacity
		SET morning_booked = $2,
		    afternoon_booked = $3,
		    updated_at = now()
		WHERE date = $1
	`, c.Date, c.MorningBooked, c.AfternoonBooked)
	return err
}

func (t *pgTx) InsertAppointment(ctx context.Context, a *Appointment) error {
	attURL, attName := attachmentColumns(a)
	canceledBy, canceledRole := canceledByColumns(a)

	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`,
		a.ID, a.CompanyID, a.EmployeeID, a.ExamTypeID, a.ScheduledAt, a.Status,
		a.HasAdditionalExams, attURL, attName, a.Sector, a.Description,
		a.CreatedAt, a.UpdatedAt, a.CompletedAt, a.CanceledAt, canceledBy, canceledRole,
		a.DateKey, int(a.TimeSlot), a.Hour, a.YearMonth, a.Shift,
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: appointment %s", ErrDuplicate, a.ID)
	}
	return err
}

func (t *pgTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

// UpdateAppointment writes the mutable columns. Scheduling fields are fixed
// once booked.
func (t *pgTx) UpdateAppointment(ctx context.Context, a *Appointment) error {
	attURL, attName := attachmentColumns(a)
	canceledBy, canceledRole := canceledByColumns(a)

	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    attachment_url = $3,
		    attachment_name = $4,
		    updated_at = $5,
		    completed_at = $6,
		    canceled_at = $7,
		    canceled_by_actor = $8,
		    canceled_by_role = $9
		WHERE id = $1
	`, a.ID, a.Status, attURL, attName, a.UpdatedAt, a.CompletedAt, a.CanceledAt, canceledBy, canceledRole)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (t *pgTx) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (t *pgTx) UpsertSlotLimits(ctx context.Context, limits []SlotLimit) error {
	batch := &pgx.Batch{}
	for _, l := range limits {
		batch.Queue(`
			INSERT INTO slot_limits (time_slot, max_appointments, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (time_slot) DO UPDATE
			SET max_appointments = EXCLUDED.max_appointments,
			    updated_at = EXCLUDED.updated_at
		`, int(l.TimeSlot), l.Limit, l.UpdatedAt)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	return err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
