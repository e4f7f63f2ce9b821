package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/belagenda/belagenda/internal/model"
)

// memStore is an in-memory Store with the same error contract as the
// postgres repository.
type memStore struct {
	appts map[string]model.Appointment
}

func newMemStore() *memStore {
	return &memStore{appts: make(map[string]model.Appointment)}
}

func (m *memStore) Insert(_ context.Context, appt *model.Appointment) error {
	for _, existing := range m.appts {
		if existing.ScheduledAt.Equal(appt.ScheduledAt) {
			return ErrSlotTaken
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
		return model.Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (m *memStore) Update(_ context.Context, id string, upd model.AppointmentUpdate) (model.Appointment, error) {
	appt, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	if upd.ScheduledAt != nil {
		for otherID, other := range m.appts {
			if otherID != id && other.ScheduledAt.Equal(*upd.ScheduledAt) {
				return model.Appointment{}, ErrSlotTaken
			}
		}
		appt.ScheduledAt = *upd.ScheduledAt
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
	if upd.Notes != nil {
		appt.Notes = *upd.Notes
	}
	m.appts[id] = appt
	return appt, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	if _, ok := m.appts[id]; !ok {
		return ErrNotFound
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

func validRequest(at time.Time) BookRequest {
	return BookRequest{
		ClientName:  "Maria Silva",
		Phone:       "(11) 98765-4321",
		Procedures:  []string{"Manicure", "Pedicure"},
		ScheduledAt: at,
	}
}

func TestBook_NormalizesAndPersists(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.UTC)

	at := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	appt, err := svc.Book(context.Background(), validRequest(at))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if appt.ID == "" {
		t.Fatal("expected generated id")
	}
	if appt.Phone != "11987654321" {
		t.Fatalf("phone not normalized: %q", appt.Phone)
	}
	if appt.ReminderSent {
		t.Fatal("new appointment must start with reminder unsent")
	}
	if _, err := store.GetByID(context.Background(), appt.ID); err != nil {
		t.Fatalf("appointment not persisted: %v", err)
	}
}

func TestBook_RejectsTakenSlot(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.UTC)

	at := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	if _, err := svc.Book(context.Background(), validRequest(at)); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	req := validRequest(at)
	req.ClientName = "Ana Costa"
	req.Phone = "11912345678"
	if _, err := svc.Book(context.Background(), req); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("want ErrSlotTaken, got %v", err)
	}

	appts, _ := store.ListAll(context.Background())
	if len(appts) != 1 {
		t.Fatalf("want 1 appointment, got %d", len(appts))
	}
}

func TestBook_Validation(t *testing.T) {
	svc := NewService(newMemStore(), time.UTC)
	at := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		mutate  func(*BookRequest)
		wantErr error
	}{
		{"blank name", func(r *BookRequest) { r.ClientName = "   " }, ErrInvalidInput},
		{"no procedures", func(r *BookRequest) { r.Procedures = nil }, ErrInvalidInput},
		{"blank procedures", func(r *BookRequest) { r.Procedures = []string{"  ", ""} }, ErrInvalidInput},
		{"zero time", func(r *BookRequest) { r.ScheduledAt = time.Time{} }, ErrInvalidInput},
		{"short phone", func(r *BookRequest) { r.Phone = "12345" }, ErrInvalidPhone},
		{"long phone", func(r *BookRequest) { r.Phone = "119876543210" }, ErrInvalidPhone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest(at)
			tc.mutate(&req)
			if _, err := svc.Book(context.Background(), req); !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestEdit_PartialUpdateKeepsReminderFlag(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.UTC)

	at := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	appt, err := svc.Book(context.Background(), validRequest(at))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	// Simulate a recorded reminder attempt.
	stored := store.appts[appt.ID]
	stored.ReminderSent = true
	store.appts[appt.ID] = stored

	notes := "trazer esmalte"
	updated, err := svc.Edit(context.Background(), appt.ID, model.AppointmentUpdate{Notes: &notes})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if updated.Notes != notes {
		t.Fatalf("notes not applied: %q", updated.Notes)
	}
	if !updated.ReminderSent {
		t.Fatal("edit must not reset the reminder flag")
	}
	if updated.ClientName != appt.ClientName || updated.Phone != appt.Phone {
		t.Fatal("unrelated fields changed")
	}
}

func TestEdit_EmptyUpdateRejected(t *testing.T) {
	svc := NewService(newMemStore(), time.UTC)
	if _, err := svc.Edit(context.Background(), "whatever", model.AppointmentUpdate{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestEdit_SlotConflict(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.UTC)

	first := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	if _, err := svc.Book(context.Background(), validRequest(first)); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	req := validRequest(second)
	req.Phone = "11912345678"
	other, err := svc.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("second booking: %v", err)
	}

	if _, err := svc.Edit(context.Background(), other.ID, model.AppointmentUpdate{ScheduledAt: &first}); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("want ErrSlotTaken, got %v", err)
	}
}

func TestEdit_NormalizesPhone(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.UTC)

	appt, err := svc.Book(context.Background(), validRequest(time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	raw := "(21) 91234-5678"
	updated, err := svc.Edit(context.Background(), appt.ID, model.AppointmentUpdate{Phone: &raw})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if updated.Phone != "21912345678" {
		t.Fatalf("phone not normalized on edit: %q", updated.Phone)
	}
}

func TestCancel_Missing(t *testing.T) {
	svc := NewService(newMemStore(), time.UTC)
	if err := svc.Cancel(context.Background(), "does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCancel_FreesSlot(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.UTC)

	at := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	appt, err := svc.Book(context.Background(), validRequest(at))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := svc.Book(context.Background(), validRequest(at)); err != nil {
		t.Fatalf("slot should be bookable after cancel: %v", err)
	}
}

func TestListByDate_HalfOpenDay(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.UTC)

	inside := time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC)
	nextDay := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{inside, nextDay} {
		req := validRequest(at)
		if _, err := svc.Book(context.Background(), req); err != nil {
			t.Fatalf("Book %v: %v", at, err)
		}
	}

	appts, err := svc.ListByDate(context.Background(), "2024-06-01")
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	if len(appts) != 1 {
		t.Fatalf("want 1 appointment on 2024-06-01, got %d", len(appts))
	}
	if !appts[0].ScheduledAt.Equal(inside) {
		t.Fatalf("wrong appointment returned: %v", appts[0].ScheduledAt)
	}
}

func TestListByDate_BadDate(t *testing.T) {
	svc := NewService(newMemStore(), time.UTC)
	if _, err := svc.ListByDate(context.Background(), "01/06/2024"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}
