package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-capacity-scheduling/internal/config"
)

const (
	testToday    = "2025-06-09" // Monday
	testTomorrow = "2025-06-10"
)

var (
	clinicActor  = Actor{ID: "reception-1", Role: RoleClinic}
	acmeActor    = Actor{ID: "hr-acme", Role: RoleCompany, CompanyID: "acme"}
	globexActor  = Actor{ID: "hr-globex", Role: RoleCompany, CompanyID: "globex"}
	testLocation = mustLocation("America/Sao_Paulo")
)

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func testConfig() config.Config {
	return config.Config{
		Timezone:          "America/Sao_Paulo",
		LockWait:          2 * time.Second,
		MorningCapacity:   60,
		AfternoonCapacity: 40,
	}
}

// testClock is 2025-06-09 08:00 clinic time, advanced by hand.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 9, 8, 0, 0, 0, testLocation)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishEvent(_ context.Context, eventType string, _ uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type testEnv struct {
	svc   *Service
	repo  *MemoryRepository
	clock *testClock
	pub   *recordingPublisher
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{
		repo:  NewMemoryRepository(),
		clock: newTestClock(),
		pub:   &recordingPublisher{},
	}
	svc, err := NewService(env.repo, NewLocalSlotLocker(cfg.LockWait), cfg,
		WithClock(env.clock.Now),
		WithPublisher(env.pub),
	)
	require.NoError(t, err)
	env.svc = svc
	return env
}

func (e *testEnv) input(t *testing.T, company, date, slot string) NewAppointmentInput {
	t.Helper()
	at, err := At(date, mustSlot(t, slot), testLocation)
	require.NoError(t, err)
	return NewAppointmentInput{
		CompanyID:   company,
		EmployeeID:  uuid.NewString(),
		ExamTypeID:  "periodic",
		ScheduledAt: at,
	}
}

func (e *testEnv) book(t *testing.T, actor Actor, date, slot string) *Appointment {
	t.Helper()
	company := actor.CompanyID
	if company == "" {
		company = "acme"
	}
	appt, err := e.svc.CreateAppointment(context.Background(), actor, e.input(t, company, date, slot))
	require.NoError(t, err)
	return appt
}

func (e *testEnv) setLimit(t *testing.T, slot string, limit int) {
	t.Helper()
	_, err := e.svc.SaveLimits(context.Background(), []SlotLimitInput{{TimeSlot: slot, Limit: limit}})
	require.NoError(t, err)
}
