package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateBooking = "booking"

	EventBookingReserved  = "booking.appointment.reserved.v1"
	EventBookingCancelled = "booking.appointment.cancelled.v1"
)

type bookingPayload struct {
	BookingID    string `json:"booking_id"`
	StaffID      string `json:"staff_id"`
	ServiceID    string `json:"service_id"`
	ClientID     string `json:"client_id"`
	Date         string `json:"date"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Status       string `json:"status"`
	CancelledAt  string `json:"cancelled_at,omitempty"`
	CancelReason string `json:"reason,omitempty"`
}

// BookingReserved builds the event announcing a new PENDING booking.
func BookingReserved(b model.Booking) (Event, error) {
	return bookingEvent(EventBookingReserved, b)
}

func BookingCancelled(b model.Booking) (Event, error) {
	return bookingEvent(EventBookingCancelled, b)
}

func bookingEvent(eventType string, b model.Booking) (Event, error) {
	p := bookingPayload{
		BookingID:    b.ID,
		StaffID:      b.StaffID,
		ServiceID:    b.ServiceID,
		ClientID:     b.ClientID,
		Date:         b.Date.String(),
		Start:        b.Start.String(),
		End:          b.End.String(),
		Status:       string(b.Status),
		CancelReason: b.CancelReason,
	}
	if b.CancelledAt != nil {
		p.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateBooking,
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
