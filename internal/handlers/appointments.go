package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/belagenda/belagenda/internal/booking"
	"github.com/belagenda/belagenda/internal/model"
)

type AppointmentHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewAppointmentHandler(svc *booking.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

type appointmentResponse struct {
	ID           string   `json:"id"`
	ClientName   string   `json:"clientName"`
	Phone        string   `json:"phone"`
	Procedures   []string `json:"procedures"`
	ScheduledAt  string   `json:"scheduledAt"`
	Notes        string   `json:"notes"`
	ReminderSent bool     `json:"reminderSent"`
	CreatedAt    string   `json:"createdAt"`
}

func toResponse(appt model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:           appt.ID,
		ClientName:   appt.ClientName,
		Phone:        appt.Phone,
		Procedures:   appt.Procedures,
		ScheduledAt:  appt.ScheduledAt.UTC().Format(time.RFC3339),
		Notes:        appt.Notes,
		ReminderSent: appt.ReminderSent,
		CreatedAt:    appt.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createAppointmentRequest struct {
	ClientName  string   `json:"clientName"`
	Phone       string   `json:"phone"`
	Procedures  []string `json:"procedures"`
	ScheduledAt string   `json:"scheduledAt"`
	Notes       string   `json:"notes"`
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "scheduledAt must be RFC3339")
		return
	}

	appt, err := h.svc.Book(r.Context(), booking.BookRequest{
		ClientName:  req.ClientName,
		Phone:       req.Phone,
		Procedures:  req.Procedures,
		ScheduledAt: scheduledAt,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(appt))
}

// List returns every appointment (most recent slot first), or the
// appointments of one calendar day when ?date=YYYY-MM-DD is given.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		appts []model.Appointment
		err   error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		appts, err = h.svc.ListByDate(r.Context(), date)
	} else {
		appts, err = h.svc.List(r.Context())
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	items := make([]appointmentResponse, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toResponse(appt))
	}
	writeJSON(w, http.StatusOK, items)
}

// Dates returns the sorted distinct calendar dates that have at least one
// appointment, for the date picker.
func (h *AppointmentHandler) Dates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.svc.DistinctDates(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, dates)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

type updateAppointmentRequest struct {
	ClientName  *string   `json:"clientName"`
	Phone       *string   `json:"phone"`
	Procedures  *[]string `json:"procedures"`
	ScheduledAt *string   `json:"scheduledAt"`
	Notes       *string   `json:"notes"`
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	upd := model.AppointmentUpdate{
		ClientName: req.ClientName,
		Phone:      req.Phone,
		Procedures: req.Procedures,
		Notes:      req.Notes,
	}
	if req.ScheduledAt != nil {
		scheduledAt, err := time.Parse(time.RFC3339, *req.ScheduledAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "scheduledAt must be RFC3339")
			return
		}
		upd.ScheduledAt = &scheduledAt
	}

	appt, err := h.svc.Edit(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "appointment cancelled"})
}

func (h *AppointmentHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "time slot already booked")
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, booking.ErrInvalidPhone), errors.Is(err, booking.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("appointment operation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
