package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the delivery state of a single feed entry. Timestamps are
// epoch seconds, stored as numbers so files written by older versions
// with fractional seconds load unchanged.
type Record struct {
	URL           string          `json:"url,omitempty"`
	LastSeen      float64         `json:"last_seen,omitempty"`
	Sent          *SentMark       `json:"sent,omitempty"`
	Errors        []DeliveryError `json:"errors,omitempty"`
	LastException *Exception      `json:"last_exception,omitempty"`
}

// DeliveryError is one failed webhook attempt, appended in order
type DeliveryError struct {
	Code int     `json:"code"`
	Text string  `json:"text"`
	When float64 `json:"when"`
}

// Exception records the most recent unexpected failure while processing the entry
type Exception struct {
	Error string  `json:"error"`
	Time  float64 `json:"time"`
}

// SentMark is the value of the record's "sent" field. Serialized as the
// boolean true when the entry was back-filled by populate mode, or as the
// delivery time in epoch seconds after a confirmed send. False means not sent.
type SentMark struct {
	Marked bool
	At     float64
}

// MarshalJSON writes true for populate marks, a number for deliveries and
// false otherwise
func (s SentMark) MarshalJSON() ([]byte, error) {
	if s.Marked {
		return []byte("true"), nil
	}
	if s.At == 0 {
		return []byte("false"), nil
	}
	return json.Marshal(s.At)
}

// UnmarshalJSON accepts a boolean, a numeric timestamp or null
func (s *SentMark) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case bool:
		*s = SentMark{Marked: val}
	case float64:
		*s = SentMark{At: val}
	case string:
		// tolerate hand-edited values, anything non-empty counts as sent
		*s = SentMark{Marked: val != ""}
	case nil:
		*s = SentMark{}
	default:
		return fmt.Errorf("unsupported sent value %v", v)
	}
	return nil
}

// IsSent reports whether the entry was delivered or back-filled. Sent state
// never goes back to false while the record exists.
func (r *Record) IsSent() bool {
	return r.Sent != nil && (r.Sent.Marked || r.Sent.At != 0)
}

// Touch refreshes the entry link and the last seen time, called on every observation
func (r *Record) Touch(url string, now time.Time) {
	r.URL = url
	r.LastSeen = float64(now.Unix())
}

// MarkPopulated marks the entry sent without a delivery
func (r *Record) MarkPopulated() {
	r.Sent = &SentMark{Marked: true}
}

// MarkDelivered marks the entry sent at the given time
func (r *Record) MarkDelivered(now time.Time) {
	r.Sent = &SentMark{At: float64(now.Unix())}
}

// AddError appends one failed delivery attempt to the record's error log
func (r *Record) AddError(code int, text string, now time.Time) {
	r.Errors = append(r.Errors, DeliveryError{Code: code, Text: text, When: float64(now.Unix())})
}

// SetException records an unexpected processing failure, replacing the previous one
func (r *Record) SetException(err error, now time.Time) {
	r.LastException = &Exception{Error: err.Error(), Time: float64(now.Unix())}
}
