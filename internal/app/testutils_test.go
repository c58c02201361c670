package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/metinatakli/showtime-booking/internal/events"
	"github.com/metinatakli/showtime-booking/internal/inventory"
	"github.com/metinatakli/showtime-booking/internal/ledger"
	"github.com/metinatakli/showtime-booking/internal/mailer"
	"github.com/metinatakli/showtime-booking/internal/mocks"
	"github.com/metinatakli/showtime-booking/internal/repository"
	"github.com/metinatakli/showtime-booking/internal/schedule"
	"github.com/metinatakli/showtime-booking/internal/sweeper"
	"github.com/metinatakli/showtime-booking/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testUserId = 7

var testNow = time.Date(2030, time.January, 10, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv is an application on the memory store with a controllable clock.
type testEnv struct {
	app          *Application
	clock        *fakeClock
	schedules    *repository.MemoryScheduleRepository
	catalog      *repository.MemoryCatalog
	reservations *repository.MemoryReservationRepository
	payments     *mocks.MockPaymentProvider
	events       *events.Recorder
	mailer       *mailer.MockMailer
}

func newTestApplication(opts ...func(*Config)) *testEnv {
	env := &testEnv{
		clock:        &fakeClock{now: testNow},
		schedules:    repository.NewMemoryScheduleRepository(),
		catalog:      repository.NewMemoryCatalog(),
		reservations: repository.NewMemoryReservationRepository(),
		payments:     new(mocks.MockPaymentProvider),
		events:       &events.Recorder{},
		mailer:       mailer.NewMockMailer(),
	}

	repository.SeedDemoCatalog(env.catalog, testNow)

	cfg := Config{
		Env:                  "test",
		Store:                StoreMemory,
		ManualPaymentConfirm: true,
		Schedule:             schedule.DefaultConfig(),
		Sweeper:              sweeper.Config{Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	services := NewServices(
		Stores{Schedules: env.schedules, Catalog: env.catalog, Reservations: env.reservations},
		inventory.NoopSeatHolder{},
		env.payments,
		env.events,
		env.mailer,
		cfg,
		ledger.DefaultPolicy(),
		logger,
		env.clock.Now,
	)

	env.app = NewApp(cfg, logger, validator.NewValidator(), services)

	return env
}

// addSchedule stores an active schedule in room 1 starting hours after testNow.
func (env *testEnv) addSchedule(t *testing.T, startAfter, length time.Duration) *domain.Schedule {
	s := &domain.Schedule{
		MovieID:   1,
		TheaterID: 1,
		RoomID:    1,
		StartTime: testNow.Add(startAfter),
		EndTime:   testNow.Add(startAfter + length),
		Price:     decimal.NewFromInt(100000),
		Active:    true,
	}

	require.NoError(t, env.schedules.Create(context.Background(), s))

	return s
}

func (env *testEnv) reserve(t *testing.T, scheduleId int, seats ...string) *domain.Reservation {
	r, err := env.app.ledger.CreateReservation(context.Background(), ledger.CreateInput{
		UserID:     testUserId,
		ScheduleID: scheduleId,
		SeatCodes:  seats,
	})
	require.NoError(t, err)

	return r
}

func (env *testEnv) serve(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.app.Routes().ServeHTTP(w, r)
	return w
}

func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	var reader io.Reader = http.NoBody

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	return w, r
}

func asUser(r *http.Request, userId int) *http.Request {
	r.Header.Set(UserIdHeader, fmt.Sprint(userId))
	return r
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, tt struct {
	wantStatus     int
	wantErrMessage string
}) {
	if tt.wantStatus >= 200 && tt.wantStatus < 300 {
		return
	}

	switch tt.wantStatus {
	case http.StatusUnprocessableEntity:
		var validationResp ValidationErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&validationResp); err != nil {
			t.Fatalf("Failed to decode validation error response: %v", err)
		}

		if tt.wantErrMessage == "" {
			return
		}

		errorSet := make(map[string]bool)
		for _, vErr := range validationResp.ValidationErrors {
			errorSet[vErr.Issue] = true
		}

		if !errorSet[tt.wantErrMessage] && validationResp.Message != tt.wantErrMessage {
			t.Errorf("Expected validation error message '%s' not found in response", tt.wantErrMessage)
		}

	default:
		var errorResp ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}

		if tt.wantErrMessage != "" && errorResp.Message != tt.wantErrMessage {
			t.Errorf("Error message = %v, want %v", errorResp.Message, tt.wantErrMessage)
		}
	}
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), "Failed to decode response")
	return v
}

func ptr[T any](v T) *T {
	return &v
}
