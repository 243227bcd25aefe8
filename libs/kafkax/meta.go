package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
)

// EventMeta travels in message headers next to the JSON payload.
type EventMeta struct {
	EventID       string
	EventType     string
	AggregateType string
}

// Headers renders the non-empty fields of m.
func (m EventMeta) Headers() []kafka.Header {
	headers := make([]kafka.Header, 0, 3)
	for _, kv := range [][2]string{
		{HeaderEventID, m.EventID},
		{HeaderEventType, m.EventType},
		{HeaderAggregateType, m.AggregateType},
	} {
		if kv[1] != "" {
			headers = append(headers, kafka.Header{Key: kv[0], Value: []byte(kv[1])})
		}
	}
	return headers
}

// ExtractEventMeta reads the headers written by Headers. Producers that do
// not set them are identified by message key and topic instead.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:       HeaderValue(msg.Headers, HeaderEventID),
		EventType:     HeaderValue(msg.Headers, HeaderEventType),
		AggregateType: HeaderValue(msg.Headers, HeaderAggregateType),
	}
	if meta.EventID == "" {
		meta.EventID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}
