package http

import "time"

// APIResponse is the envelope every API response is wrapped in. Status
// mirrors the HTTP status code.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request parameter.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// TimeRange echoes the resolved time filter of a query.
type TimeRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// NewTimeRange drops zero bounds.
func NewTimeRange(from, to time.Time) TimeRange {
	var tr TimeRange
	if !from.IsZero() {
		tr.From = &from
	}
	if !to.IsZero() {
		tr.To = &to
	}
	return tr
}
