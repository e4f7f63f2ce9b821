package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/belagenda/belagenda/internal/booking"
	"github.com/belagenda/belagenda/internal/model"
)

type memStore struct {
	appts map[string]model.Appointment
}

func (m *memStore) Insert(_ context.Context, appt *model.Appointment) error {
	for _, existing := range m.appts {
		if existing.ScheduledAt.Equal(appt.ScheduledAt) {
			return booking.ErrSlotTaken
		}
	}
	m.appts[appt.ID] = *appt
	return nil
}

func (m *memStore) ExistsAtSlot(_ context.Context, at time.Time) (bool, error) {
	for _, existing := range m.appts {
		if existing.ScheduledAt.Equal(at) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (model.Appointment, error) {
	appt, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, booking.ErrNotFound
	}
	return appt, nil
}

func (m *memStore) Update(_ context.Context, id string, upd model.AppointmentUpdate) (model.Appointment, error) {
	appt, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, booking.ErrNotFound
	}
	if upd.ClientName != nil {
		appt.ClientName = *upd.ClientName
	}
	if upd.Phone != nil {
		appt.Phone = *upd.Phone
	}
	if upd.Procedures != nil {
		appt.Procedures = *upd.Procedures
	}
	if upd.ScheduledAt != nil {
		appt.ScheduledAt = *upd.ScheduledAt
	}
	if upd.Notes != nil {
		appt.Notes = *upd.Notes
	}
	m.appts[id] = appt
	return appt, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	if _, ok := m.appts[id]; !ok {
		return booking.ErrNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *memStore) ListAll(_ context.Context) ([]model.Appointment, error) {
	out := make([]model.Appointment, 0, len(m.appts))
	for _, appt := range m.appts {
		out = append(out, appt)
	}
	return out, nil
}

func (m *memStore) ListRange(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, appt := range m.appts {
		if !appt.ScheduledAt.Before(from) && appt.ScheduledAt.Before(to) {
			out = append(out, appt)
		}
	}
	return out, nil
}

func (m *memStore) DistinctDates(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var dates []string
	for _, appt := range m.appts {
		d := appt.ScheduledAt.Format("2006-01-02")
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	return dates, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()
	store := &memStore{appts: make(map[string]model.Appointment)}
	svc := booking.NewService(store, time.UTC)
	h := NewAppointmentHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/appointments", h.Create)
	mux.HandleFunc("GET /api/v1/appointments", h.List)
	mux.HandleFunc("GET /api/v1/appointments/dates", h.Dates)
	mux.HandleFunc("GET /api/v1/appointments/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/appointments/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/appointments/{id}", h.Delete)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode response %q: %v", raw, err)
		}
	}
	return resp, decoded
}

const createBody = `{
	"clientName": "Maria Silva",
	"phone": "(11) 98765-4321",
	"procedures": ["Manicure", "Pedicure"],
	"scheduledAt": "2024-06-01T14:00:00Z",
	"notes": "primeira visita"
}`

func TestCreateAppointment(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", createBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if body["phone"] != "11987654321" {
		t.Fatalf("phone = %v, want normalized digits", body["phone"])
	}
	if body["reminderSent"] != false {
		t.Fatalf("reminderSent = %v, want false", body["reminderSent"])
	}
	if body["id"] == "" || body["id"] == nil {
		t.Fatal("missing id")
	}
}

func TestCreateAppointment_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"bad timestamp", `{"clientName":"A","phone":"11987654321","procedures":["x"],"scheduledAt":"01/06/2024"}`, http.StatusBadRequest},
		{"bad phone", `{"clientName":"A","phone":"123","procedures":["x"],"scheduledAt":"2024-06-01T15:00:00Z"}`, http.StatusBadRequest},
		{"missing name", `{"clientName":" ","phone":"11987654321","procedures":["x"],"scheduledAt":"2024-06-01T15:00:00Z"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestCreateAppointment_Conflict(t *testing.T) {
	srv, _ := newTestServer(t)

	if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", createBody); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first booking status = %d", resp.StatusCode)
	}
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", createBody)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if body["error"] != "time slot already booked" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestGetAppointment_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/appointments/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUpdateAppointment(t *testing.T) {
	srv, _ := newTestServer(t)

	_, created := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", createBody)
	id := created["id"].(string)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/v1/appointments/"+id, `{"notes":"remarcado"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["notes"] != "remarcado" {
		t.Fatalf("notes = %v", body["notes"])
	}
	if body["clientName"] != "Maria Silva" {
		t.Fatalf("clientName changed: %v", body["clientName"])
	}

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/v1/appointments/"+id, `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty update status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteAppointment(t *testing.T) {
	srv, store := newTestServer(t)

	_, created := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", createBody)
	id := created["id"].(string)

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/appointments/"+id, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(store.appts) != 0 {
		t.Fatal("appointment still stored after delete")
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/appointments/"+id, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestListAppointments_ByDate(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", createBody)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments",
		`{"clientName":"Ana","phone":"11912345678","procedures":["Corte"],"scheduledAt":"2024-06-02T10:00:00Z"}`)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/appointments?date=2024-06-01", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()

	var items []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("want 1 appointment on 2024-06-01, got %d", len(items))
	}
	if items[0]["clientName"] != "Maria Silva" {
		t.Fatalf("wrong appointment: %v", items[0]["clientName"])
	}
}

func TestAppointmentDates(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/appointments/dates")
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	defer resp.Body.Close()

	var dates []string
	if err := json.NewDecoder(resp.Body).Decode(&dates); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dates == nil || len(dates) != 0 {
		t.Fatalf("empty calendar must serialize as [], got %v", dates)
	}
}
