package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type bookingBody struct {
	DoctorID   string `json:"doctorId"`
	HospitalID string `json:"hospitalId"`
	PatientID  string `json:"patientId"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Type       string `json:"type,omitempty"`
}

type slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// apiClient is a thin JSON client over the scheduling HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// do sends body (when not nil) and decodes a 2xx response into out. It
// returns the status code even when decoding is skipped.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Actor-ID", "simulator")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *apiClient) openSlots(ctx context.Context, doctorID, hospitalID, date string) ([]slot, int, error) {
	var out struct {
		Slots []slot `json:"slots"`
	}
	path := fmt.Sprintf("/doctors/%s/hospitals/%s/slots?date=%s", doctorID, hospitalID, date)
	status, err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Slots, status, err
}

func (c *apiClient) book(ctx context.Context, b bookingBody) (uuid.UUID, int, error) {
	var out struct {
		ID uuid.UUID `json:"id"`
	}
	status, err := c.do(ctx, http.MethodPost, "/appointments", b, &out)
	return out.ID, status, err
}
