package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trimly/internal/model"
)

func TestFetchAppointments(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotKey = r.Header.Get("X-API-Key")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"appointments": []model.Appointment{
				{ID: 1, ResourceID: 3, Start: model.NewTimeOfDay(10, 0), End: model.NewTimeOfDay(10, 30), Status: model.StatusConfirmed},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	date := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	appointments, err := client.FetchAppointments(context.Background(), 7, model.SpecificResource(3), date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(appointments) != 1 || appointments[0].ResourceID != 3 {
		t.Fatalf("unexpected appointments: %+v", appointments)
	}
	if gotKey != "secret" {
		t.Errorf("missing API key header, got %q", gotKey)
	}
	want := "/api/v1/shops/7/appointments?date=2026-04-06&resource=3"
	if gotPath != want {
		t.Errorf("path %q, want %q", gotPath, want)
	}
}

func TestFetchOperatingHours(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.OperatingHours{
			Weekly: map[time.Weekday]model.DayHours{
				time.Monday: {Open: model.NewTimeOfDay(9, 0), Close: model.NewTimeOfDay(18, 0)},
			},
			ClosedDates: []string{"2026-05-01"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	hours, err := client.FetchOperatingHours(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	window, ok := hours.HoursFor(time.Monday)
	if !ok || window.Open != model.NewTimeOfDay(9, 0) {
		t.Errorf("unexpected hours: %+v", hours)
	}
}

func TestCreateAppointmentUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slot already taken", http.StatusConflict)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.CreateAppointment(context.Background(), CreateAppointmentRequest{BarbershopID: 7})
	if err == nil {
		t.Fatal("expected error for upstream 409")
	}
}

func TestCreateAppointment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if req.ResourceID != 3 || req.Date != "2026-04-06" {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	id, err := client.CreateAppointment(context.Background(), CreateAppointmentRequest{
		BarbershopID: 7,
		ResourceID:   3,
		ServiceID:    2,
		Date:         "2026-04-06",
		Start:        model.NewTimeOfDay(10, 0),
		End:          model.NewTimeOfDay(10, 30),
		Price:        2500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}
}
