package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type RaceResult struct {
	Created   int
	Conflicts int
	Other     map[int]int
	Errors    int
	Metrics   *OperationMetrics
}

// raceSlot fires clients concurrent bookings at one slot, released together
// from a shared barrier.
func raceSlot(ctx context.Context, c *apiClient, target bookingBody, clients int) (RaceResult, error) {
	res := RaceResult{Other: map[int]int{}, Metrics: &OperationMetrics{}}
	var mu sync.Mutex

	start := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < clients; i++ {
		body := target
		body.PatientID = fmt.Sprintf("%s-%03d", target.PatientID, i)

		g.Go(func() error {
			<-start
			t0 := time.Now()
			_, status, err := c.book(gctx, body)
			latency := time.Since(t0)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Errors++
			case status == http.StatusCreated:
				res.Created++
			case status == http.StatusConflict:
				res.Conflicts++
			default:
				res.Other[status]++
			}
			res.Metrics.Record(latency, err == nil && status == http.StatusCreated, status == http.StatusConflict)
			return nil
		})
	}

	close(start)
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}
