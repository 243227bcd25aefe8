package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
)

const TopicStaffAvailabilityUpdated = "business.staff.availability.updated.v1"

// StaffInvalidator drops cached working-hours templates.
type StaffInvalidator interface {
	Invalidate(staffID string)
}

type staffAvailabilityUpdated struct {
	StaffID string `json:"staff_id"`
}

// StaffAvailabilityHandler invalidates the cached template of the staff
// member named in the event, falling back to the message key.
func StaffAvailabilityHandler(cache StaffInvalidator, logger *slog.Logger) Handler {
	return func(_ context.Context, msg kafka.Message) error {
		var evt staffAvailabilityUpdated
		if len(msg.Value) > 0 {
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				return fmt.Errorf("decode %s: %w", TopicStaffAvailabilityUpdated, err)
			}
		}
		staffID := strings.TrimSpace(evt.StaffID)
		if staffID == "" {
			staffID = strings.TrimSpace(string(msg.Key))
		}
		if staffID == "" {
			return fmt.Errorf("%s without staff_id", TopicStaffAvailabilityUpdated)
		}
		cache.Invalidate(staffID)
		if logger != nil {
			logger.Info("staff availability invalidated", "staff_id", staffID)
		}
		return nil
	}
}
