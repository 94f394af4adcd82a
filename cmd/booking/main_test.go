package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/smart-booking-client/internal/testutil"
	"github.com/Sternrassler/smart-booking-client/pkg/booking"
	"github.com/Sternrassler/smart-booking-client/pkg/client"
	"github.com/Sternrassler/smart-booking-client/pkg/session"
)

type cliEnv struct {
	mock      *testutil.MockBackend
	tokenPath string
	envFile   string
}

func setup(t *testing.T) *cliEnv {
	t.Helper()
	mock := testutil.NewMockBackend()
	t.Cleanup(mock.Close)

	dir := t.TempDir()
	e := &cliEnv{
		mock:      mock,
		tokenPath: filepath.Join(dir, "token"),
		envFile:   filepath.Join(dir, "absent.env"),
	}
	t.Setenv("BOOKING_API_URL", mock.URL())
	t.Setenv("BOOKING_TOKEN_FILE", e.tokenPath)
	t.Setenv("BOOKING_REDIS_URL", "")
	t.Setenv("BOOKING_LOG_LEVEL", "disabled")
	t.Setenv("BOOKING_RATE_LIMIT", "0")
	t.Setenv("BOOKING_SERVICE_ID", "")
	t.Setenv("BOOKING_REVALIDATE_SLOT", "")
	return e
}

func (e *cliEnv) login(t *testing.T) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.tokenPath, []byte("tok-1\n"), 0o600))
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	code := run(ctx, append([]string{"-env", e.envFile}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// nextWeekday returns a bookable date after today.
func nextWeekday() string {
	d := time.Now().AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return booking.FormatDate(d)
}

var testSlots = []booking.TimeSlot{
	{Time: "09:00", Available: true},
	{Time: "10:00", Available: false, AppointmentID: "a0"},
	{Time: "10:30", Available: true},
}

func TestRun_Usage(t *testing.T) {
	e := setup(t)

	code, _, stderr := e.run(t, "")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Commands:")

	code, _, stderr = e.run(t, "", "frobnicate")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)

	code, _, _ = e.run(t, "", "show")
	assert.Equal(t, exitUsage, code, "missing argument")
}

func TestRun_InvalidConfig(t *testing.T) {
	e := setup(t)
	t.Setenv("BOOKING_API_URL", "not-a-url")

	code, _, stderr := e.run(t, "", "health")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "configuration error")
}

func TestHealth(t *testing.T) {
	e := setup(t)
	e.mock.SetResponse(http.MethodGet, client.PathHealth, testutil.OK(map[string]string{"status": "ok"}))

	code, stdout, _ := e.run(t, "", "health")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "is healthy")

	e.mock.SetResponse(http.MethodGet, client.PathHealth, testutil.Fail(http.StatusServiceUnavailable, "maintenance"))
	code, _, stderr := e.run(t, "", "health")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, client.MessageServer)
}

func TestServices(t *testing.T) {
	e := setup(t)
	e.mock.SetResponse(http.MethodGet, client.PathServices, testutil.OK([]booking.Service{
		{ID: "3", Name: "Massage", Category: "wellness", Duration: 60, Price: 80},
	}))

	code, stdout, _ := e.run(t, "", "services")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Massage")
	assert.Contains(t, stdout, "60 min")
	assert.Contains(t, stdout, "80.00")
}

func TestSlots_SeveralDays(t *testing.T) {
	e := setup(t)
	e.mock.Handle(http.MethodGet, client.PathAvailableSlots, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "2024-06-11" {
			testutil.WriteEnvelope(w, http.StatusOK, true, []booking.TimeSlot{{Time: "09:00", Available: false}}, "")
			return
		}
		testutil.WriteEnvelope(w, http.StatusOK, true, testSlots, "")
	})

	code, stdout, _ := e.run(t, "", "slots", "-days", "3", "2024-06-10")
	require.Equal(t, exitOK, code)
	assert.Equal(t, 3, e.mock.Count(http.MethodGet, client.PathAvailableSlots))

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2024-06-10: 09:00 10:30", lines[0])
	assert.Equal(t, "2024-06-11: fully booked", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2024-06-12:"))
}

func TestSlots_InvalidDate(t *testing.T) {
	e := setup(t)

	code, _, stderr := e.run(t, "", "slots", "10.06.2024")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "invalid date")
	assert.Zero(t, e.mock.RequestCount())
}

func TestAppointments_RequiresLogin(t *testing.T) {
	e := setup(t)

	code, _, stderr := e.run(t, "", "appointments")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "not logged in")
	assert.Zero(t, e.mock.RequestCount())
}

func TestAppointments_ExpiredTokenIsSentToBackend(t *testing.T) {
	e := setup(t)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(e.tokenPath, []byte(expired+"\n"), 0o600))
	e.mock.SetResponse(http.MethodGet, client.PathAppointments, testutil.OK([]booking.Appointment{}))

	code, stdout, _ := e.run(t, "", "appointments")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "No appointments.")
	assert.Equal(t, "Bearer "+expired, e.mock.LastHeader().Get("Authorization"))

	// Only the backend's 401 ends the session
	e.mock.SetResponse(http.MethodGet, client.PathAppointments, testutil.Fail(http.StatusUnauthorized, "token expired"))
	code, _, stderr := e.run(t, "", "appointments")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, client.MessageSession)
	assert.NoFileExists(t, e.tokenPath)
}

func TestLoginThenAppointments(t *testing.T) {
	e := setup(t)
	e.mock.SetResponse(http.MethodPost, client.PathLogin, testutil.OK(booking.AuthResult{
		Token: "tok-42",
		User:  booking.User{ID: "u1", Name: "Alice", Email: "alice@example.com"},
	}))
	e.mock.SetResponse(http.MethodGet, client.PathAppointments, testutil.OK([]booking.Appointment{
		{ID: "a2", Date: "2024-06-12", Time: "09:00", ServiceID: "3", Status: booking.StatusConfirmed},
		{ID: "a1", Date: "2024-06-10", Time: "10:30", ServiceID: "3", Status: booking.StatusPending},
		{ID: "a0", Date: "2024-06-01", Time: "10:30", ServiceID: "3", Status: booking.StatusCancelled},
	}))

	code, stdout, _ := e.run(t, "", "login", "-email", "alice@example.com", "-password", "secret")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Logged in as Alice")

	token, err := os.ReadFile(e.tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "tok-42", strings.TrimSpace(string(token)))

	code, stdout, _ = e.run(t, "", "appointments")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "Bearer tok-42", e.mock.LastHeader().Get("Authorization"))
	assert.NotContains(t, stdout, "a0", "cancelled hidden by default")
	assert.Less(t, strings.Index(stdout, "a1"), strings.Index(stdout, "a2"), "sorted by date")

	code, stdout, _ = e.run(t, "", "appointments", "-all")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "a0")
}

func TestLogin_PromptsForPassword(t *testing.T) {
	e := setup(t)
	var got booking.LoginRequest
	e.mock.Handle(http.MethodPost, client.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		testutil.WriteEnvelope(w, http.StatusOK, true, booking.AuthResult{Token: "tok", User: booking.User{Name: "Alice"}}, "")
	})

	code, stdout, _ := e.run(t, "secret\n", "login", "-email", "alice@example.com")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Password: ")
	assert.Equal(t, booking.LoginRequest{Email: "alice@example.com", Password: "secret"}, got)
}

func TestLogin_WrongPassword(t *testing.T) {
	e := setup(t)
	e.mock.SetResponse(http.MethodPost, client.PathLogin, testutil.Fail(http.StatusUnauthorized, "Invalid credentials"))

	code, _, stderr := e.run(t, "", "login", "-email", "alice@example.com", "-password", "nope")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "Invalid credentials")
	assert.NoFileExists(t, e.tokenPath)
}

func TestCancel(t *testing.T) {
	e := setup(t)
	e.login(t)
	e.mock.SetResponse(http.MethodPatch, client.PathAppointment("a1")+"/cancel", testutil.OK(booking.Appointment{
		ID: "a1", Date: "2024-06-10", Time: "10:30", Status: booking.StatusCancelled,
	}))

	code, stdout, _ := e.run(t, "", "cancel", "a1")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "is now cancelled")
}

func TestReschedule(t *testing.T) {
	e := setup(t)
	e.login(t)
	var got map[string]any
	e.mock.Handle(http.MethodPut, client.PathAppointment("a1"), func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		testutil.WriteEnvelope(w, http.StatusOK, true, booking.Appointment{ID: "a1", Date: "2024-06-10", Time: "11:00", Status: booking.StatusPending}, "")
	})

	code, _, stderr := e.run(t, "", "reschedule", "a1")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "nothing to change")

	code, stdout, _ := e.run(t, "", "reschedule", "-time", "11:00", "a1")
	require.Equal(t, exitOK, code)
	assert.Equal(t, map[string]any{"time": "11:00"}, got, "only the changed field is sent")
	assert.Contains(t, stdout, "2024-06-10 11:00")
}

func TestProfile(t *testing.T) {
	e := setup(t)
	e.login(t)
	e.mock.SetResponse(http.MethodGet, client.PathProfile, testutil.OK(booking.User{ID: "u1", Name: "Alice", Email: "alice@example.com"}))
	e.mock.SetResponse(http.MethodPut, client.PathProfile, testutil.OK(booking.User{ID: "u1", Name: "Alice", Email: "alice@example.com", Phone: "555-0100"}))

	code, stdout, _ := e.run(t, "", "profile")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Email: alice@example.com")
	assert.NotContains(t, stdout, "Phone")

	code, stdout, _ = e.run(t, "", "profile", "-phone", "555-0100")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Phone: 555-0100")
	assert.Equal(t, 1, e.mock.Count(http.MethodPut, client.PathProfile))
}

func TestLogout(t *testing.T) {
	e := setup(t)
	e.login(t)

	code, stdout, _ := e.run(t, "", "logout")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Logged out.")
	assert.NoFileExists(t, e.tokenPath)

	code, stdout, _ = e.run(t, "", "logout")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Not logged in.")
}

func TestUnauthorizedDropsToken(t *testing.T) {
	e := setup(t)
	e.login(t)
	e.mock.SetResponse(http.MethodGet, client.PathAppointments, testutil.Fail(http.StatusUnauthorized, ""))

	code, _, stderr := e.run(t, "", "appointments")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, client.MessageSession)
	assert.NoFileExists(t, e.tokenPath)
}

func TestBook_Interactive(t *testing.T) {
	e := setup(t)
	e.login(t)
	date := nextWeekday()
	e.mock.SetResponse(http.MethodGet, client.PathAvailableSlots, testutil.OK(testSlots))
	var got booking.CreateAppointmentRequest
	e.mock.Handle(http.MethodPost, client.PathAppointments, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		testutil.WriteEnvelope(w, http.StatusCreated, true, booking.Appointment{
			ID: "a9", ServiceID: got.ServiceID, Date: got.Date, Time: got.Time, Status: booking.StatusPending,
		}, "")
	})

	input := strings.Join([]string{
		date,                // date
		"10:00",             // taken
		"10:30",             // time
		"Alice",             // name
		"alice@example.com", // email
		"",                  // message
		"y",                 // submit
		"n",                 // book another
	}, "\n") + "\n"

	code, stdout, stderr := e.run(t, input, "book", "-service", "3")
	require.Equal(t, exitOK, code, stderr)

	assert.Contains(t, stdout, date+": 09:00 10:30")
	assert.Contains(t, stdout, "! time slot is not available")
	assert.Contains(t, stdout, "Booked! "+date+" at 10:30 for Alice <alice@example.com>.")
	assert.Contains(t, stdout, "Reference: a9 (pending)")
	assert.Equal(t, booking.CreateAppointmentRequest{ServiceID: "3", Date: date, Time: "10:30"}, got)
}

func TestBook_RejectsWeekendAndAbortsOnEOF(t *testing.T) {
	e := setup(t)
	e.login(t)

	d := time.Now().AddDate(0, 0, 1)
	for d.Weekday() != time.Saturday {
		d = d.AddDate(0, 0, 1)
	}

	code, stdout, stderr := e.run(t, booking.FormatDate(d)+"\n", "book")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stdout, "date cannot be booked")
	assert.Contains(t, stderr, "booking aborted")
	assert.Zero(t, e.mock.RequestCount())
}

func TestMetricsFlag(t *testing.T) {
	e := setup(t)
	e.mock.SetResponse(http.MethodGet, client.PathServices, testutil.OK([]booking.Service{}))

	code, _, stderr := e.run(t, "", "-metrics", "services")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "booking_requests_total")
	assert.Contains(t, stderr, "booking_cache_misses_total")
}

func TestRedisBackedSession(t *testing.T) {
	e := setup(t)
	mr := miniredis.RunT(t)
	t.Setenv("BOOKING_REDIS_URL", "redis://"+mr.Addr())
	e.mock.SetResponse(http.MethodPost, client.PathLogin, testutil.OK(booking.AuthResult{
		Token: "tok-redis", User: booking.User{Name: "Alice"},
	}))
	e.mock.SetResponse(http.MethodGet, client.PathServices, testutil.OK([]booking.Service{{ID: "3", Name: "Massage", Duration: 60}}))

	code, _, _ := e.run(t, "", "login", "-email", "alice@example.com", "-password", "secret")
	require.Equal(t, exitOK, code)

	token, err := mr.Get(session.DefaultRedisKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-redis", token)
	assert.NoFileExists(t, e.tokenPath)

	// A second process reads the catalog from the shared cache
	code, _, _ = e.run(t, "", "services")
	require.Equal(t, exitOK, code)
	code, _, _ = e.run(t, "", "services")
	require.Equal(t, exitOK, code)
	assert.Equal(t, 1, e.mock.Count(http.MethodGet, client.PathServices))
}
