package redisclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockKey(t *testing.T) {
	assert.Equal(t, "lock:slot:doc-1:hosp-1:2025-03-10:09:00", lockKey("slot", "doc-1:hosp-1:2025-03-10:09:00"))
	assert.Equal(t, "lock:job:reminder-dispatch", lockKey("job", "reminder-dispatch"))
}

func TestWindowLimiter_WindowKey(t *testing.T) {
	l := NewWindowLimiter(nil, "notify-hourly", 10, time.Hour)

	l.now = func() time.Time { return time.Date(2025, 3, 10, 9, 59, 59, 0, time.UTC) }
	first := l.windowKey("patient-1")

	l.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	sameHour := l.windowKey("patient-1")

	l.now = func() time.Time { return time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC) }
	nextHour := l.windowKey("patient-1")

	assert.Equal(t, first, sameHour)
	assert.NotEqual(t, first, nextHour)
	assert.Contains(t, first, "ratelimit:notify-hourly:patient-1:")
	assert.Equal(t, "notify-hourly", l.Name())
}
