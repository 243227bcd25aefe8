package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

// Scheduler is implemented by *scheduling.Service.
type Scheduler interface {
	GetAvailability(ctx context.Context, staffID string, date model.Date, serviceID string) ([]scheduling.Slot, error)
	CreateBooking(ctx context.Context, staffID string, date model.Date, start model.TimeOfDay, serviceID, clientID string) (model.Booking, error)
	CancelBooking(ctx context.Context, bookingID, reason string) (model.Booking, error)
	ListBookings(ctx context.Context, staffID string, date model.Date) ([]model.Booking, error)
}

// IdempotencyStore remembers the response of booking requests that carried
// an Idempotency-Key header.
type IdempotencyStore interface {
	LookupIdempotency(ctx context.Context, key string) (storage.IdempotencyRecord, bool, error)
	SaveIdempotency(ctx context.Context, rec storage.IdempotencyRecord) error
}

type BookingHandler struct {
	scheduler   Scheduler
	idempotency IdempotencyStore
	logger      *slog.Logger
}

func NewBookingHandler(scheduler Scheduler, idempotency IdempotencyStore, logger *slog.Logger) *BookingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingHandler{
		scheduler:   scheduler,
		idempotency: idempotency,
		logger:      logger,
	}
}

// Register mounts the booking routes on mux. The staff routes go through
// staffAuth when it is set.
func (h *BookingHandler) Register(mux *http.ServeMux, staffAuth httpx.Middleware) {
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/book", h.Create)

	staff := func(f http.HandlerFunc) http.Handler {
		if staffAuth == nil {
			return f
		}
		return staffAuth(f)
	}
	mux.Handle("/api/v1/appointments", staff(h.List))
	mux.Handle("/api/v1/appointments/cancel", staff(h.Cancel))
}

type createBookingRequest struct {
	StaffID   string `json:"staff_id"`
	ServiceID string `json:"service_id"`
	ClientID  string `json:"client_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

type bookingResponse struct {
	BookingID   string `json:"booking_id"`
	StaffID     string `json:"staff_id"`
	ServiceID   string `json:"service_id"`
	ClientID    string `json:"client_id"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.StaffID == "" || req.ServiceID == "" || req.ClientID == "" {
		http.Error(w, "staff_id, service_id and client_id are required", http.StatusBadRequest)
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	start, err := model.ParseTimeOfDay(req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" && h.idempotency != nil {
		rec, found, err := h.idempotency.LookupIdempotency(ctx, idempotencyKey)
		if err != nil {
			h.logger.Error("idempotency lookup failed", "err", err)
			http.Error(w, "failed to check idempotency key", http.StatusInternalServerError)
			return
		}
		if found {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	b, err := h.scheduler.CreateBooking(ctx, req.StaffID, date, start, req.ServiceID, req.ClientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	body, err := json.Marshal(toBookingResponse(b))
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" && h.idempotency != nil {
		if err := h.idempotency.SaveIdempotency(ctx, storage.IdempotencyRecord{
			Key:             idempotencyKey,
			BookingID:       b.ID,
			StatusCode:      http.StatusCreated,
			ResponsePayload: body,
		}); err != nil {
			// The booking exists; a retry with the same key will conflict rather than double book.
			h.logger.Warn("idempotency save failed", "err", err, "booking_id", b.ID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}

	b, err := h.scheduler.CancelBooking(r.Context(), req.BookingID, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	if staffID == "" {
		http.Error(w, "staff_id required", http.StatusBadRequest)
		return
	}
	date, err := model.ParseDate(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	bookings, err := h.scheduler.ListBookings(r.Context(), staffID, date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if staffID == "" || serviceID == "" || dateStr == "" {
		http.Error(w, "staff_id, service_id, and date are required", http.StatusBadRequest)
		return
	}
	date, err := model.ParseDate(dateStr)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	slots, err := h.scheduler.GetAvailability(r.Context(), staffID, date, serviceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, slotItem{StartTime: s.Start.String(), EndTime: s.End.String()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError maps scheduling errors onto status codes. Infrastructure
// errors are logged and hidden from the client.
func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrSlotConflict):
		http.Error(w, "time slot already booked", http.StatusConflict)
	case errors.Is(err, model.ErrTimeout):
		w.Header().Set("Retry-After", "1")
		http.Error(w, "booking is busy, retry shortly", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		w.WriteHeader(499)
	default:
		h.logger.Error("request failed", "err", err, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toBookingResponse(b model.Booking) bookingResponse {
	resp := bookingResponse{
		BookingID: b.ID,
		StaffID:   b.StaffID,
		ServiceID: b.ServiceID,
		ClientID:  b.ClientID,
		Date:      b.Date.String(),
		StartTime: b.Start.String(),
		EndTime:   b.End.String(),
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
