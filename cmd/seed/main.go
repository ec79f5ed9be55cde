package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-capacity-scheduling/internal/app"
	"github.com/hackgods/clinic-capacity-scheduling/internal/config"
	"github.com/hackgods/clinic-capacity-scheduling/internal/logging"
	"github.com/hackgods/clinic-capacity-scheduling/internal/scheduling"
)

var clinicActor = scheduling.Actor{ID: "seed", Role: scheduling.RoleClinic}

type seedConfig struct {
	Days      int
	Companies int
	Bookings  int // attempted bookings per day
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev", "seed")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(cfg.Env, "seed")

	sc := seedConfig{
		Days:      getInt("SEED_DAYS", 14),
		Companies: getInt("SEED_COMPANIES", 25),
		Bookings:  getInt("SEED_BOOKINGS_PER_DAY", 80),
	}
	log.Info().Interface("seed", sc).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup error")
	}
	defer a.Close()

	faker := gofakeit.New(0)

	if err := seedLimits(ctx, a.Service, log); err != nil {
		log.Fatal().Err(err).Msg("seed slot limits")
	}
	dates := upcomingDates(a.Service.Location(), sc.Days)
	if err := seedBlocks(ctx, a.Service, faker, dates, log); err != nil {
		log.Fatal().Err(err).Msg("seed blocks")
	}
	if err := seedBookings(ctx, a.Service, faker, dates, sc, log); err != nil {
		log.Fatal().Err(err).Msg("seed bookings")
	}

	log.Info().Msg("seed complete")
}

// seedLimits thins out the lunch slots; everything else keeps the default curve.
func seedLimits(ctx context.Context, svc *scheduling.Service, log zerolog.Logger) error {
	limits, err := svc.SaveLimits(ctx, []scheduling.SlotLimitInput{
		{TimeSlot: "12:00", Limit: 1},
		{TimeSlot: "12:15", Limit: 1},
		{TimeSlot: "12:30", Limit: 1},
		{TimeSlot: "12:45", Limit: 1},
	})
	if err != nil {
		return err
	}
	log.Info().Int("slots", len(limits)).Msg("slot limits seeded")
	return nil
}

// seedBlocks closes Sundays, one random weekday, and a couple of random slots.
func seedBlocks(ctx context.Context, svc *scheduling.Service, faker *gofakeit.Faker, dates []string, log zerolog.Logger) error {
	grid := scheduling.GridSlots()
	blockedDates, blockedSlots := 0, 0

	holiday := dates[faker.Number(0, len(dates)-1)]
	for _, date := range dates {
		d, _ := time.Parse(scheduling.DateLayout, date)
		if d.Weekday() == time.Sunday || date == holiday {
			reason := "closed on sundays"
			if date == holiday {
				reason = "holiday: " + faker.Word()
			}
			if _, err := svc.AddBlockedDate(ctx, date, reason); err != nil && !errors.Is(err, scheduling.ErrDuplicate) {
				return err
			}
			blockedDates++
			continue
		}

		if faker.Bool() {
			slot := grid[faker.Number(0, len(grid)-1)]
			_, err := svc.AddBlockedTimeSlot(ctx, date, slot.String(), "equipment maintenance")
			if err != nil && !errors.Is(err, scheduling.ErrDuplicate) {
				return err
			}
			blockedSlots++
		}
	}

	log.Info().Int("dates", blockedDates).Int("slots", blockedSlots).Msg("blocks seeded")
	return nil
}

func seedBookings(ctx context.Context, svc *scheduling.Service, faker *gofakeit.Faker, dates []string, sc seedConfig, log zerolog.Logger) error {
	companies := make([]string, sc.Companies)
	for i := range companies {
		companies[i] = faker.UUID()
	}
	examTypes := []string{"admission", "periodic", "dismissal", "return_to_work", "change_of_role"}
	grid := scheduling.GridSlots()

	booked, rejected := 0, 0
	for _, date := range dates {
		for i := 0; i < sc.Bookings; i++ {
			slot := grid[faker.Number(0, len(grid)-1)]
			at, err := scheduling.At(date, slot, svc.Location())
			if err != nil {
				return err
			}

			appt, err := svc.CreateAppointment(ctx, clinicActor, scheduling.NewAppointmentInput{
				CompanyID:          companies[faker.Number(0, len(companies)-1)],
				EmployeeID:         faker.UUID(),
				ExamTypeID:         faker.RandomString(examTypes),
				ScheduledAt:        at,
				HasAdditionalExams: slot.WithinAdditionalExamsWindow() && faker.Number(1, 4) == 1,
				Sector:             faker.JobDescriptor(),
				Description:        faker.JobTitle(),
			})
			if err != nil {
				var verr *scheduling.ValidationError
				if errors.Is(err, scheduling.ErrSlotUnavailable) || errors.As(err, &verr) {
					rejected++
					continue
				}
				return err
			}
			booked++

			if faker.Number(1, 10) == 1 {
				if _, err := svc.CancelAppointment(ctx, clinicActor, appt.ID); err != nil {
					return err
				}
			}
		}
	}

	log.Info().Int("booked", booked).Int("rejected", rejected).Msg("bookings seeded")
	return nil
}

func upcomingDates(loc *time.Location, days int) []string {
	today := time.Now().In(loc)
	dates := make([]string, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, today.AddDate(0, 0, i).Format(scheduling.DateLayout))
	}
	return dates
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
