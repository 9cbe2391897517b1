package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/doctor-availability-scheduling/internal/app"
	"github.com/hackgods/doctor-availability-scheduling/internal/availability"
	"github.com/hackgods/doctor-availability-scheduling/internal/booking"
	"github.com/hackgods/doctor-availability-scheduling/internal/config"
	"github.com/hackgods/doctor-availability-scheduling/internal/logging"
)

type seedOptions struct {
	doctors   int
	hospitals int
	bookings  int
	days      int
}

type schedule struct {
	doctorID   string
	hospitalID string
}

func main() {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Fill the store with fake doctor schedules and bookings",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.doctors, "doctors", 50, "Doctors to create")
	cmd.Flags().IntVar(&opts.hospitals, "hospitals", 5, "Hospitals the doctors are spread across")
	cmd.Flags().IntVar(&opts.bookings, "bookings", 200, "Appointments to book")
	cmd.Flags().IntVar(&opts.days, "days", 14, "How many days ahead bookings may land")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.doctors <= 0 || opts.hospitals <= 0 {
		return errors.New("doctors and hospitals must be positive")
	}

	logger := logging.New("seed", cfg.Env, cfg.LogLevel)
	ctx = logger.WithContext(ctx)

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	faker := gofakeit.New(0)

	schedules, err := seedSchedules(ctx, a.Availability, faker, opts)
	if err != nil {
		return fmt.Errorf("seed schedules: %w", err)
	}
	booked, err := seedBookings(ctx, a, faker, schedules, opts)
	if err != nil {
		return fmt.Errorf("seed bookings: %w", err)
	}

	logger.Info().Int("schedules", len(schedules)).Int("bookings", booked).Msg("seed complete")
	return nil
}

func seedSchedules(ctx context.Context, svc *availability.Service, faker *gofakeit.Faker, opts seedOptions) ([]schedule, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Int("doctors", opts.doctors).Int("hospitals", opts.hospitals).Msg("seeding schedules")

	hospitals := make([]string, opts.hospitals)
	for i := range hospitals {
		hospitals[i] = "hosp-" + faker.UUID()[:8]
	}

	durations := []int{15, 20, 30, 45}
	starts := []string{"08:00", "08:30", "09:00", "10:00"}
	ends := []string{"12:00", "13:00", "16:00", "17:00", "18:00"}

	var out []schedule
	for i := 0; i < opts.doctors; i++ {
		doctorID := "doc-" + faker.UUID()[:8]
		hospital := hospitals[faker.Number(0, len(hospitals)-1)]

		tpl := availability.WeeklyTemplate{}
		for day := time.Monday; day <= time.Friday; day++ {
			if faker.Number(0, 4) == 0 {
				continue
			}
			tpl[day] = availability.TimeRange{
				StartTime: starts[faker.Number(0, len(starts)-1)],
				EndTime:   ends[faker.Number(0, len(ends)-1)],
			}
		}
		if len(tpl) == 0 {
			tpl[time.Monday] = availability.TimeRange{StartTime: "09:00", EndTime: "17:00"}
		}
		if faker.Bool() {
			tpl[time.Saturday] = availability.TimeRange{StartTime: "09:00", EndTime: "12:00"}
		}

		duration := durations[faker.Number(0, len(durations)-1)]
		if _, err := svc.SaveWeeklyTemplate(ctx, doctorID, hospital, tpl, duration); err != nil {
			return nil, fmt.Errorf("doctor %s: %w", doctorID, err)
		}

		// One blocked day in the coming month for roughly a third of doctors.
		if faker.Number(0, 2) == 0 {
			date := time.Now().UTC().AddDate(0, 0, faker.Number(1, 30)).Format(availability.DateLayout)
			if _, err := svc.BlockDate(ctx, doctorID, hospital, date, "Conference"); err != nil {
				return nil, fmt.Errorf("block %s for %s: %w", date, doctorID, err)
			}
		}

		out = append(out, schedule{doctorID: doctorID, hospitalID: hospital})
	}

	logger.Info().Int("count", len(out)).Msg("schedules seeded")
	return out, nil
}

func seedBookings(ctx context.Context, a *app.App, faker *gofakeit.Faker, schedules []schedule, opts seedOptions) (int, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Int("target", opts.bookings).Msg("seeding bookings")

	loc := a.Booking.Location()
	booked := 0
	for attempt := 0; booked < opts.bookings && attempt < opts.bookings*5; attempt++ {
		sch := schedules[faker.Number(0, len(schedules)-1)]
		date := time.Now().In(loc).AddDate(0, 0, faker.Number(1, opts.days)).Format(availability.DateLayout)

		slots, err := a.Scheduling.GetOpenSlots(ctx, sch.doctorID, sch.hospitalID, date)
		if err != nil {
			return booked, err
		}
		if len(slots) == 0 {
			continue
		}
		slot := slots[faker.Number(0, len(slots)-1)]

		patientID := "pat-" + faker.UUID()[:8]
		_, err = a.Scheduling.RequestBooking(ctx, booking.BookRequest{
			DoctorID:   sch.doctorID,
			HospitalID: sch.hospitalID,
			PatientID:  patientID,
			Date:       date,
			Time:       slot.Time,
			Type:       booking.TypeConsultation,
			Notes:      faker.Name() + " referral",
			ReminderPreferences: booking.ReminderPreferences{
				Email:     true,
				SMS:       faker.Bool(),
				Intervals: append([]int(nil), a.Config.ReminderOffsets...),
			},
			ActorID: patientID,
		})
		var taken *booking.SlotTakenError
		if errors.As(err, &taken) {
			continue
		}
		if err != nil {
			return booked, err
		}
		booked++
	}

	logger.Info().Int("count", booked).Msg("bookings seeded")
	return booked, nil
}
