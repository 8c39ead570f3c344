package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trimly/internal/availability"
	"trimly/internal/blocks"
	"trimly/internal/booking"
	"trimly/internal/database"
	"trimly/internal/events"
	"trimly/internal/model"
	"trimly/internal/upstream"
)

// Monday 2026-04-06; clock fixed a week earlier.
var (
	testDate = time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	testNow  = time.Date(2026, 3, 30, 12, 0, 0, 0, time.UTC)
)

type fakePlatform struct {
	services     []model.Service
	resources    []model.Resource
	hours        model.OperatingHours
	appointments []model.Appointment

	fetchErr  error
	createErr error
	created   []upstream.CreateAppointmentRequest
	nextID    int64
}

func (p *fakePlatform) FetchServices(ctx context.Context, shopID int64) ([]model.Service, error) {
	return p.services, p.fetchErr
}

func (p *fakePlatform) FetchResources(ctx context.Context, shopID int64) ([]model.Resource, error) {
	return p.resources, p.fetchErr
}

func (p *fakePlatform) FetchOperatingHours(ctx context.Context, shopID int64) (*model.OperatingHours, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return &p.hours, nil
}

func (p *fakePlatform) FetchAppointments(ctx context.Context, shopID int64, selector model.ResourceSelector, date time.Time) ([]model.Appointment, error) {
	return p.appointments, p.fetchErr
}

func (p *fakePlatform) CreateAppointment(ctx context.Context, req upstream.CreateAppointmentRequest) (int64, error) {
	if p.createErr != nil {
		return 0, p.createErr
	}
	p.created = append(p.created, req)
	p.nextID++
	return p.nextID, nil
}

func defaultPlatform() *fakePlatform {
	weekly := make(map[time.Weekday]model.DayHours)
	for day := time.Monday; day <= time.Saturday; day++ {
		weekly[day] = model.DayHours{Open: model.NewTimeOfDay(9, 0), Close: model.NewTimeOfDay(18, 0)}
	}
	return &fakePlatform{
		services: []model.Service{
			{ID: 1, Name: "haircut", DurationMinutes: 30, BasePrice: 2500, PriceByResource: map[int64]int64{2: 3000}},
			{ID: 2, Name: "full shave", DurationMinutes: 60, BasePrice: 4000},
		},
		resources: []model.Resource{{ID: 1, DisplayName: "Marco"}, {ID: 2, DisplayName: "Luis"}},
		hours:     model.OperatingHours{Weekly: weekly},
	}
}

func newTestServer(t *testing.T, cfg Config, platform *fakePlatform) (*HTTPServer, *events.Bus) {
	t.Helper()

	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := blocks.NewStore(db)
	calc := availability.NewCalculator(30)
	flow := booking.NewFlow(platform, store, calc, booking.NewSessionStore(time.Hour), booking.Rules{}, zerolog.Nop()).
		WithClock(func() time.Time { return testNow })
	bus := events.NewBus()

	return NewHTTPServer(cfg, platform, store, calc, flow, bus, zerolog.Nop()), bus
}

func doRequest(t *testing.T, srv *HTTPServer, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestAvailabilityEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, defaultPlatform())

	w := doRequest(t, srv, "GET", "/api/availability?shop=7&service=1&resource=1&date=2026-04-06", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[AvailabilityResponse](t, w)
	assert.False(t, resp.Closed)
	assert.Equal(t, "2026-04-06", resp.Date)
	assert.Equal(t, "1", resp.Resource)
	assert.Len(t, resp.Slots, 18)
	assert.Equal(t, model.NewTimeOfDay(9, 0), resp.Slots[0])
	assert.Equal(t, model.NewTimeOfDay(17, 30), resp.Slots[17])
}

func TestAvailabilityHidesPastSlotsToday(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, defaultPlatform())
	srv.WithClock(func() time.Time {
		return time.Date(2026, 4, 6, 15, 0, 0, 0, time.UTC)
	})

	w := doRequest(t, srv, "GET", "/api/availability?shop=7&service=1&resource=1&date=2026-04-06", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[AvailabilityResponse](t, w)
	require.NotEmpty(t, resp.Slots)
	assert.Equal(t, model.NewTimeOfDay(15, 30), resp.Slots[0])
	assert.NotContains(t, resp.Slots, model.NewTimeOfDay(15, 0))
}

func TestAvailabilityClosedDay(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, defaultPlatform())

	// Sunday has no weekly hours.
	w := doRequest(t, srv, "GET", "/api/availability?shop=7&service=1&resource=any&date=2026-04-05", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[AvailabilityResponse](t, w)
	assert.True(t, resp.Closed)
	assert.Empty(t, resp.Slots)
}

func TestAvailabilityValidation(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, defaultPlatform())

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing shop", "/api/availability?service=1&date=2026-04-06", http.StatusBadRequest},
		{"bad date", "/api/availability?shop=7&service=1&date=06.04.2026", http.StatusBadRequest},
		{"bad resource", "/api/availability?shop=7&service=1&resource=first&date=2026-04-06", http.StatusBadRequest},
		{"unknown service", "/api/availability?shop=7&service=99&date=2026-04-06", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, "GET", tt.target, nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAvailabilityUpstreamFailure(t *testing.T) {
	platform := defaultPlatform()
	platform.fetchErr = errors.New("connection refused")
	srv, _ := newTestServer(t, Config{}, platform)

	w := doRequest(t, srv, "GET", "/api/availability?shop=7&service=1&date=2026-04-06", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestConflictsEndpoint(t *testing.T) {
	platform := defaultPlatform()
	platform.appointments = []model.Appointment{
		{ID: 1, ResourceID: 1, Date: testDate, Start: model.NewTimeOfDay(9, 0), End: model.NewTimeOfDay(9, 30), Status: model.StatusConfirmed},
		{ID: 2, ResourceID: 1, Date: testDate, Start: model.NewTimeOfDay(9, 15), End: model.NewTimeOfDay(9, 45), Status: model.StatusConfirmed},
		{ID: 3, ResourceID: 2, Date: testDate, Start: model.NewTimeOfDay(9, 0), End: model.NewTimeOfDay(9, 30), Status: model.StatusConfirmed},
	}
	srv, _ := newTestServer(t, Config{}, platform)

	w := doRequest(t, srv, "GET", "/api/conflicts?shop=7&date=2026-04-06", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[ConflictsResponse](t, w)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Groups, 1)
	group := resp.Groups[0]
	assert.Equal(t, int64(1), group.ResourceID)
	assert.Equal(t, model.NewTimeOfDay(9, 0), group.Start)
	assert.Equal(t, model.NewTimeOfDay(9, 45), group.End)
	assert.Len(t, group.Appointments, 2)
}

func TestBlocksCreateListDelete(t *testing.T) {
	srv, bus := newTestServer(t, Config{}, defaultPlatform())

	var published []events.Event
	bus.Subscribe(events.BlockCreated, func(e events.Event) error {
		published = append(published, e)
		return nil
	})
	bus.Subscribe(events.BlockDeleted, func(e events.Event) error {
		published = append(published, e)
		return nil
	})

	w := doRequest(t, srv, "POST", "/api/blocks", BlockRequest{
		BarbershopID:   7,
		Title:          "lunch",
		StartTime:      "12:00",
		EndTime:        "13:00",
		RecurrenceType: "none",
		BlockDate:      "2026-04-06",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeJSON[struct {
		ID    int64       `json:"id"`
		Block model.Block `json:"block"`
	}](t, w)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "lunch", created.Block.Title)

	w = doRequest(t, srv, "GET", "/api/blocks?shop=7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeJSON[struct {
		Blocks []model.Block `json:"blocks"`
	}](t, w)
	require.Len(t, list.Blocks, 1)

	// Scoped to another shop: empty.
	w = doRequest(t, srv, "GET", "/api/blocks?shop=8", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = decodeJSON[struct {
		Blocks []model.Block `json:"blocks"`
	}](t, w)
	assert.Empty(t, list.Blocks)

	w = doRequest(t, srv, "DELETE", fmt.Sprintf("/api/blocks/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, "DELETE", fmt.Sprintf("/api/blocks/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Len(t, published, 2)
	assert.Equal(t, events.BlockCreated, published[0].Type)
	assert.Equal(t, events.BlockDeleted, published[1].Type)
}

func TestCreateBlockInvalid(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, defaultPlatform())

	// Weekly recurrence without weekdays violates the shape invariant.
	w := doRequest(t, srv, "POST", "/api/blocks", BlockRequest{
		BarbershopID:   7,
		Title:          "training",
		StartTime:      "09:00",
		EndTime:        "10:00",
		RecurrenceType: "weekly",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, "GET", "/api/blocks?shop=7", nil)
	list := decodeJSON[struct {
		Blocks []model.Block `json:"blocks"`
	}](t, w)
	assert.Empty(t, list.Blocks)
}

func TestBlocksAffectAvailability(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, defaultPlatform())

	w := doRequest(t, srv, "POST", "/api/blocks", BlockRequest{
		BarbershopID:   7,
		Title:          "cleaning",
		StartTime:      "10:00",
		EndTime:        "11:00",
		RecurrenceType: "none",
		BlockDate:      "2026-04-06",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, srv, "GET", "/api/availability?shop=7&service=1&resource=1&date=2026-04-06", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON[AvailabilityResponse](t, w)

	assert.Len(t, resp.Slots, 16)
	assert.NotContains(t, resp.Slots, model.NewTimeOfDay(10, 0))
	assert.NotContains(t, resp.Slots, model.NewTimeOfDay(10, 30))
	assert.Contains(t, resp.Slots, model.NewTimeOfDay(11, 0))
}

func TestBookingEndpoints(t *testing.T) {
	platform := defaultPlatform()
	srv, _ := newTestServer(t, Config{}, platform)

	w := doRequest(t, srv, "POST", "/api/booking", StartBookingRequest{BarbershopID: 7, ClientID: 100})
	require.Equal(t, http.StatusCreated, w.Code)
	session := decodeJSON[SessionResponse](t, w)
	require.NotEmpty(t, session.SessionID)
	assert.Equal(t, "selecting_service", session.State)

	base := "/api/booking/" + session.SessionID

	w = doRequest(t, srv, "POST", base+"/service", SelectServiceRequest{ServiceID: 1})
	require.Equal(t, http.StatusOK, w.Code)
	session = decodeJSON[SessionResponse](t, w)
	assert.Equal(t, "selecting_resource", session.State)
	assert.Equal(t, "haircut", session.ServiceName)

	w = doRequest(t, srv, "POST", base+"/resource", SelectResourceRequest{Resource: "2"})
	require.Equal(t, http.StatusOK, w.Code)
	session = decodeJSON[SessionResponse](t, w)
	assert.Equal(t, "selecting_datetime", session.State)
	assert.Equal(t, int64(2), session.ResourceID)

	w = doRequest(t, srv, "POST", base+"/datetime", SelectDateTimeRequest{Date: "2026-04-06", Time: "10:00"})
	require.Equal(t, http.StatusOK, w.Code)
	session = decodeJSON[SessionResponse](t, w)
	assert.Equal(t, "confirming", session.State)
	assert.Equal(t, int64(3000), session.Price) // per-resource price

	w = doRequest(t, srv, "POST", base+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	confirm := decodeJSON[struct {
		Success bool           `json:"success"`
		Result  booking.Result `json:"result"`
	}](t, w)
	assert.True(t, confirm.Success)
	assert.Equal(t, int64(2), confirm.Result.ResourceID)
	assert.Equal(t, "2026-04-06", confirm.Result.Date)
	require.Len(t, platform.created, 1)

	w = doRequest(t, srv, "GET", base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	session = decodeJSON[SessionResponse](t, w)
	assert.Equal(t, "confirmed", session.State)
}

func TestBookingBackStep(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, defaultPlatform())

	w := doRequest(t, srv, "POST", "/api/booking", StartBookingRequest{BarbershopID: 7, ClientID: 100})
	session := decodeJSON[SessionResponse](t, w)
	base := "/api/booking/" + session.SessionID

	doRequest(t, srv, "POST", base+"/service", SelectServiceRequest{ServiceID: 1})
	doRequest(t, srv, "POST", base+"/resource", SelectResourceRequest{Resource: "any"})

	w = doRequest(t, srv, "POST", base+"/back", nil)
	require.Equal(t, http.StatusOK, w.Code)
	session = decodeJSON[SessionResponse](t, w)
	assert.Equal(t, "selecting_resource", session.State)
}

func TestBookingErrors(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, defaultPlatform())

	// Unknown session.
	w := doRequest(t, srv, "GET", "/api/booking/no-such-session", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, srv, "POST", "/api/booking", StartBookingRequest{BarbershopID: 7, ClientID: 100})
	session := decodeJSON[SessionResponse](t, w)
	base := "/api/booking/" + session.SessionID

	// Resource before service is out of order.
	w = doRequest(t, srv, "POST", base+"/resource", SelectResourceRequest{Resource: "1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown service id.
	w = doRequest(t, srv, "POST", base+"/service", SelectServiceRequest{ServiceID: 99})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed selector.
	doRequest(t, srv, "POST", base+"/service", SelectServiceRequest{ServiceID: 1})
	w = doRequest(t, srv, "POST", base+"/resource", SelectResourceRequest{Resource: "fastest"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, "POST", base+"/teleport", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleExportEndpoint(t *testing.T) {
	platform := defaultPlatform()
	platform.appointments = []model.Appointment{
		{ID: 1, ResourceID: 1, Date: testDate, Start: model.NewTimeOfDay(9, 0), End: model.NewTimeOfDay(9, 30), Status: model.StatusConfirmed},
	}
	srv, _ := newTestServer(t, Config{}, platform)

	w := doRequest(t, srv, "GET", "/api/schedule/export?shop=7&date=2026-04-06", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "schedule_2026-04-06.xlsx")
	assert.NotZero(t, w.Body.Len())
}

func TestAPIKeyMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, Config{APIKey: "secret"}, defaultPlatform())

	req := httptest.NewRequest("GET", "/api/blocks?shop=7", http.NoBody)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest("GET", "/api/blocks?shop=7", http.NoBody)
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest("GET", "/api/blocks?shop=7", http.NoBody)
	req.Header.Set("X-API-Key", "secret")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, Config{RateLimitRPS: 1, RateLimitBurst: 2}, defaultPlatform())

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		w := doRequest(t, srv, "GET", "/api/blocks?shop=7", nil)
		codes[w.Code]++
	}
	assert.NotZero(t, codes[http.StatusTooManyRequests])
	assert.NotZero(t, codes[http.StatusOK])
}
