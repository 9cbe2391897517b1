package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type LoadConfig struct {
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ConfirmRatio float64
	ReadRatio    float64
	DaysAhead    int
	Patients     int
	ScheduleCap  int
}

// normalize scales the ratios so they sum to one.
func (c *LoadConfig) normalize() {
	total := c.BookingRatio + c.ConfirmRatio + c.ReadRatio
	if total > 0 {
		c.BookingRatio /= total
		c.ConfirmRatio /= total
		c.ReadRatio /= total
	}
}

func (c LoadConfig) validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if c.DaysAhead <= 0 {
		return fmt.Errorf("days must be > 0")
	}
	if c.Patients <= 0 {
		return fmt.Errorf("patients must be > 0")
	}
	return nil
}

type schedule struct {
	DoctorID   string
	HospitalID string
}

type DataPool struct {
	Schedules []schedule
	Patients  []string

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

// loadDataPool reads the seeded doctor and hospital pairs. Patients are
// synthetic ids since patient identity lives outside this service.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg LoadConfig) (*DataPool, error) {
	rows, err := pool.Query(ctx, `
		SELECT doctor_id, hospital_id FROM availability_records
		ORDER BY random()
		LIMIT $1
	`, cfg.ScheduleCap)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	schedules, err := pgx.CollectRows(rows, pgx.RowToStructByPos[schedule])
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	if len(schedules) == 0 {
		return nil, fmt.Errorf("no availability records found, run seed first")
	}

	dp := &DataPool{Schedules: schedules}
	for i := 0; i < cfg.Patients; i++ {
		dp.Patients = append(dp.Patients, fmt.Sprintf("sim-pat-%05d", i))
	}
	return dp, nil
}

type Metrics struct {
	Booking       OperationMetrics
	Confirm       OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	OpenSlots     OperationMetrics
}

type Simulator struct {
	config  LoadConfig
	pool    *DataPool
	client  *apiClient
	metrics Metrics
}

func (s *Simulator) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Duration)
	defer cancel()

	zerolog.Ctx(ctx).Info().
		Dur("duration", s.config.Duration).
		Int("workers", s.config.Workers).
		Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	zerolog.Ctx(ctx).Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.ConfirmRatio:
			s.doConfirm(ctx, rng)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doListByPatient(ctx, rng)
			case 2:
				s.doOpenSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format("2006-01-02")
}

// doBooking picks an open slot first so most failures are real races rather
// than requests for closed times.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	sch := s.pool.Schedules[rng.Intn(len(s.pool.Schedules))]
	date := s.randomDate(rng)

	slots, status, err := s.client.openSlots(ctx, sch.DoctorID, sch.HospitalID, date)
	if err != nil || status != http.StatusOK || len(slots) == 0 {
		return
	}

	start := time.Now()
	id, status, err := s.client.book(ctx, bookingBody{
		DoctorID:   sch.DoctorID,
		HospitalID: sch.HospitalID,
		PatientID:  s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		Date:       date,
		Time:       slots[rng.Intn(len(slots))].Time,
	})
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	success := err == nil && status == http.StatusCreated
	if success && id != uuid.Nil {
		s.pool.AddAppointment(id)
	}
	s.metrics.Booking.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.client.do(ctx, http.MethodPost, "/appointments/"+id.String()+"/status",
		map[string]string{"status": "confirmed"}, nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	// Confirming twice is a rejected transition, which counts as a conflict.
	s.metrics.Confirm.Record(latency, err == nil && status == http.StatusOK, status == http.StatusUnprocessableEntity)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	s.timedGet(ctx, &s.metrics.ReadByID, "/appointments/"+id.String())
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	s.timedGet(ctx, &s.metrics.ListByPatient, "/appointments?patientId="+patientID+"&limit=20&offset=0")
}

func (s *Simulator) doOpenSlots(ctx context.Context, rng *rand.Rand) {
	sch := s.pool.Schedules[rng.Intn(len(s.pool.Schedules))]
	path := fmt.Sprintf("/doctors/%s/hospitals/%s/slots?date=%s", sch.DoctorID, sch.HospitalID, s.randomDate(rng))
	s.timedGet(ctx, &s.metrics.OpenSlots, path)
}

func (s *Simulator) timedGet(ctx context.Context, om *OperationMetrics, path string) {
	start := time.Now()
	status, err := s.client.do(ctx, http.MethodGet, path, nil, nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}
	om.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) PrintReport(w io.Writer) {
	line := "================================================================================"
	fmt.Fprintln(w, "\n"+line)
	fmt.Fprintln(w, "SIMULATION REPORT")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Duration: %s\n", s.config.Duration)
	fmt.Fprintf(w, "Workers: %d\n\n", s.config.Workers)

	printOperationReport(w, "Booking", &s.metrics.Booking)
	printOperationReport(w, "Confirm", &s.metrics.Confirm)
	printOperationReport(w, "Read by ID", &s.metrics.ReadByID)
	printOperationReport(w, "List by Patient", &s.metrics.ListByPatient)
	printOperationReport(w, "Open Slots", &s.metrics.OpenSlots)
}
