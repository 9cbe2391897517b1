package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/doctor-availability-scheduling/internal/config"
	"github.com/hackgods/doctor-availability-scheduling/internal/db"
	"github.com/hackgods/doctor-availability-scheduling/internal/logging"
)

type globalFlags struct {
	baseURL string
	timeout time.Duration
}

func main() {
	var g globalFlags

	rootCmd := &cobra.Command{
		Use:          "simulate",
		Short:        "Drive load against a running api-server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.baseURL, "base-url", envOr("SIM_API_BASE_URL", "http://localhost:8080"), "API base URL")
	rootCmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 10*time.Second, "Per request timeout")

	rootCmd.AddCommand(loadCmd(&g))
	rootCmd.AddCommand(raceCmd(&g))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadCmd(g *globalFlags) *cobra.Command {
	var lc LoadConfig

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run a mixed booking, confirm and read workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			lc.normalize()
			if err := lc.validate(); err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.New("simulate", cfg.Env, cfg.LogLevel)
			ctx := logger.WithContext(cmd.Context())

			connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			pool, err := db.ConnectPostgres(connCtx, cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			dp, err := loadDataPool(connCtx, pool, lc)
			if err != nil {
				return err
			}
			logger.Info().Int("schedules", len(dp.Schedules)).Int("patients", len(dp.Patients)).Msg("data pool loaded")

			sim := &Simulator{
				config: lc,
				pool:   dp,
				client: newAPIClient(g.baseURL, g.timeout),
			}
			sim.Run(ctx)
			sim.PrintReport(cmd.OutOrStdout())
			return nil
		},
	}

	f := cmd.Flags()
	f.DurationVar(&lc.Duration, "duration", 30*time.Second, "How long to run")
	f.IntVar(&lc.Workers, "workers", 10, "Concurrent workers")
	f.Float64Var(&lc.BookingRatio, "booking-ratio", 0.5, "Share of booking operations")
	f.Float64Var(&lc.ConfirmRatio, "confirm-ratio", 0.2, "Share of confirm operations")
	f.Float64Var(&lc.ReadRatio, "read-ratio", 0.3, "Share of read operations")
	f.IntVar(&lc.DaysAhead, "days", 14, "Book up to this many days ahead")
	f.IntVar(&lc.Patients, "patients", 4000, "Distinct synthetic patients")
	f.IntVar(&lc.ScheduleCap, "schedules", 500, "Max doctor and hospital pairs to load")
	return cmd
}

func raceCmd(g *globalFlags) *cobra.Command {
	var (
		target  bookingBody
		clients int
	)

	cmd := &cobra.Command{
		Use:   "race",
		Short: "Fire concurrent bookings at one slot and check only one wins",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target.DoctorID == "" || target.HospitalID == "" || target.Date == "" || target.Time == "" {
				return fmt.Errorf("--doctor, --hospital, --date and --time are required")
			}
			if clients <= 0 {
				return fmt.Errorf("--clients must be > 0")
			}

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			ctx := logger.WithContext(cmd.Context())

			res, err := raceSlot(ctx, newAPIClient(g.baseURL, g.timeout), target, clients)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "clients=%d created=%d conflicts=%d errors=%d other=%v\n",
				clients, res.Created, res.Conflicts, res.Errors, res.Other)
			printOperationReport(out, "Race", res.Metrics)

			if res.Created > 1 {
				return fmt.Errorf("double booking: %d appointments created for one slot", res.Created)
			}
			logger.Info().Int("created", res.Created).Msg("slot race finished")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&target.DoctorID, "doctor", "", "Doctor id")
	f.StringVar(&target.HospitalID, "hospital", "", "Hospital id")
	f.StringVar(&target.Date, "date", "", "Slot date, YYYY-MM-DD")
	f.StringVar(&target.Time, "time", "", "Slot start, HH:MM")
	f.StringVar(&target.PatientID, "patient-prefix", "race-pat", "Prefix for the racing patient ids")
	f.IntVar(&clients, "clients", 50, "Concurrent booking attempts")
	return cmd
}
