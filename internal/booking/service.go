package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/belagenda/belagenda/internal/model"
	"github.com/belagenda/belagenda/internal/phone"
)

// Store is the durable appointment collection. Implementations must report
// ErrNotFound for missing ids and ErrSlotTaken when the scheduled_at
// uniqueness constraint rejects a write; the constraint at the storage layer
// is the authoritative double-booking guard.
type Store interface {
	Insert(ctx context.Context, appt *model.Appointment) error
	ExistsAtSlot(ctx context.Context, at time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (model.Appointment, error)
	Update(ctx context.Context, id string, upd model.AppointmentUpdate) (model.Appointment, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]model.Appointment, error)
	ListRange(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
	DistinctDates(ctx context.Context) ([]string, error)
}

type Service struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

func NewService(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store: store,
		loc:   loc,
		now:   time.Now,
	}
}

type BookRequest struct {
	ClientName  string
	Phone       string
	Procedures  []string
	ScheduledAt time.Time
	Notes       string
}

// Book validates the request and commits the appointment. The existence check
// before the insert is a fast-path user-facing error only; a concurrent
// booking for the same slot is caught by the store's uniqueness constraint.
func (s *Service) Book(ctx context.Context, req BookRequest) (model.Appointment, error) {
	name := strings.TrimSpace(req.ClientName)
	if name == "" {
		return model.Appointment{}, fmt.Errorf("%w: client name required", ErrInvalidInput)
	}
	procedures, err := cleanProcedures(req.Procedures)
	if err != nil {
		return model.Appointment{}, err
	}
	if req.ScheduledAt.IsZero() {
		return model.Appointment{}, fmt.Errorf("%w: scheduled time required", ErrInvalidInput)
	}
	digits, err := phone.Normalize(req.Phone)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("%w: %s", ErrInvalidPhone, err)
	}

	taken, err := s.store.ExistsAtSlot(ctx, req.ScheduledAt)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return model.Appointment{}, ErrSlotTaken
	}

	appt := model.Appointment{
		ID:           uuid.NewString(),
		ClientName:   name,
		Phone:        digits,
		Procedures:   procedures,
		ScheduledAt:  req.ScheduledAt,
		Notes:        strings.TrimSpace(req.Notes),
		ReminderSent: false,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Insert(ctx, &appt); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Edit applies a partial update. Slot uniqueness is not re-checked here; a
// conflicting scheduled time is rejected by the store constraint.
func (s *Service) Edit(ctx context.Context, id string, upd model.AppointmentUpdate) (model.Appointment, error) {
	if upd.Empty() {
		return model.Appointment{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	if upd.ClientName != nil {
		name := strings.TrimSpace(*upd.ClientName)
		if name == "" {
			return model.Appointment{}, fmt.Errorf("%w: client name required", ErrInvalidInput)
		}
		upd.ClientName = &name
	}
	if upd.Phone != nil {
		digits, err := phone.Normalize(*upd.Phone)
		if err != nil {
			return model.Appointment{}, fmt.Errorf("%w: %s", ErrInvalidPhone, err)
		}
		upd.Phone = &digits
	}
	if upd.Procedures != nil {
		procedures, err := cleanProcedures(*upd.Procedures)
		if err != nil {
			return model.Appointment{}, err
		}
		upd.Procedures = &procedures
	}
	if upd.ScheduledAt != nil && upd.ScheduledAt.IsZero() {
		return model.Appointment{}, fmt.Errorf("%w: scheduled time required", ErrInvalidInput)
	}
	return s.store.Update(ctx, id, upd)
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (model.Appointment, error) {
	return s.store.GetByID(ctx, id)
}

// List returns every appointment, most recent slot first.
func (s *Service) List(ctx context.Context) ([]model.Appointment, error) {
	return s.store.ListAll(ctx)
}

// ListByDate returns the appointments of one calendar day in the configured
// location, earliest first. date is "2006-01-02".
func (s *Service) ListByDate(ctx context.Context, date string) ([]model.Appointment, error) {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	return s.store.ListRange(ctx, day, day.AddDate(0, 0, 1))
}

// DistinctDates returns the sorted set of calendar dates with at least one
// appointment, for the date picker.
func (s *Service) DistinctDates(ctx context.Context) ([]string, error) {
	return s.store.DistinctDates(ctx)
}

func cleanProcedures(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one procedure required", ErrInvalidInput)
	}
	return out, nil
}
