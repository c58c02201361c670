package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/showtime-booking/internal/app"
	"github.com/stretchr/testify/require"
)

const testUserId = 11

var keysToIgnore = map[string]struct{}{
	"timestamp": {},
	"requestId": {},
	"createdAt": {},
}

func prepareRequest(method, path string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req := httptest.NewRequest(method, path, body)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

func userHeaders(userId int) map[string]string {
	return map[string]string{app.UserIdHeader: strconv.Itoa(userId)}
}

func jsonBody(t testing.TB, v any) io.Reader {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

// do sends one request through the router and decodes the JSON response into
// out when it is not nil.
func (a *TestApp) do(t testing.TB, method, path string, userId int, body any, out any) int {
	var reader io.Reader
	if body != nil {
		reader = jsonBody(t, body)
	}

	headers := map[string]string{}
	if userId != 0 {
		headers = userHeaders(userId)
	}

	req, err := prepareRequest(method, path, reader, headers)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.App.Routes().ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
	}

	return rec.Code
}

// createSchedule books room 1 with The Matrix starting after the given offset
// from now and returns the new id.
func (a *TestApp) createSchedule(t testing.TB, startAfter, length time.Duration) int {
	start := time.Now().UTC().Add(startAfter).Truncate(time.Minute)

	var resp app.ScheduleResponse
	status := a.do(t, http.MethodPost, "/schedules", 0, map[string]any{
		"movieId":   1,
		"theaterId": 1,
		"roomId":    1,
		"startTime": start,
		"endTime":   start.Add(length),
		"price":     "100000",
	}, &resp)
	require.Equal(t, http.StatusCreated, status)

	return resp.Id
}

func (a *TestApp) reserve(t testing.TB, userId, scheduleId int, seats ...string) (int, app.ReservationResponse) {
	var resp app.ReservationResponse
	status := a.do(t, http.MethodPost, "/reservations", userId, map[string]any{
		"scheduleId": scheduleId,
		"seats":      seats,
	}, &resp)

	return status, resp
}

func seedCatalog(t testing.TB, db *pgxpool.Pool) {
	ctx := context.Background()
	now := time.Now()

	statements := []string{
		`INSERT INTO movies (title, duration_minutes) VALUES ('The Matrix', 136), ('Spirited Away', 125)`,
		`INSERT INTO theaters (name) VALUES ('Cinema City'), ('Riverside')`,
		`INSERT INTO rooms (theater_id, name) VALUES (1, 'Hall 1'), (2, 'Hall A')`,
		`INSERT INTO room_seats (room_id, seat_code, seat_row, seat_col, seat_class, surcharge)
			SELECT 1, r || c, r, c,
				CASE WHEN r = 'E' THEN 'vip' ELSE 'standard' END,
				CASE WHEN r = 'E' THEN 20000 ELSE 0 END
			FROM unnest(ARRAY['A', 'B', 'C', 'D', 'E']) AS r, generate_series(1, 10) AS c`,
		`INSERT INTO room_seats (room_id, seat_code, seat_row, seat_col)
			SELECT 2, 'A' || c, 'A', c FROM generate_series(1, 8) AS c`,
		`INSERT INTO combos (name, price) VALUES ('Popcorn + Soda', 45000), ('Nachos', 30000)`,
	}

	for _, stmt := range statements {
		_, err := db.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	_, err := db.Exec(ctx, `
		INSERT INTO vouchers (code, discount_type, discount_value, max_discount, min_order_value, valid_from, valid_until)
		VALUES ('SAVE10', 'percent', 10, 50000, 200000, $1, $2)`,
		now.AddDate(0, -1, 0), now.AddDate(1, 0, 0))
	require.NoError(t, err)
}

func compareResponse(t *testing.T, body io.Reader, expectedResponse string) {
	var actual map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&actual))

	cleanMap(actual)

	var expected map[string]any
	require.NoError(t, json.Unmarshal([]byte(expectedResponse), &expected))

	// ignore indetermistic fields while comparing
	opts := cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
		_, ok := keysToIgnore[k]
		return ok
	})

	if diff := cmp.Diff(expected, actual, opts); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func cleanMap(m map[string]any) {
	for k := range m {
		if _, ok := keysToIgnore[k]; ok {
			delete(m, k)
			continue
		}
		if nested, ok := m[k].(map[string]any); ok {
			cleanMap(nested)
		}
	}
}

func reservationPath(id int, suffix string) string {
	return fmt.Sprintf("/reservations/%d%s", id, suffix)
}

func decodeBody(res *http.Response, v any) error {
	return json.NewDecoder(res.Body).Decode(v)
}
