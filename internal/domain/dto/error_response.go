package dto

import "time"

// ErrorResponse is the JSON body of every non-2xx response.
//
// ErrorDetails is only filled for client errors; server errors expose the
// generic Message and keep the cause in the logs.
type ErrorResponse struct {
	Timestamp    time.Time `json:"timestamp" example:"2024-01-01T12:00:00Z"`
	Status       int       `json:"status" example:"404"`
	Message      string    `json:"message" example:"not found: no price data found for BTC"`
	ErrorDetails string    `json:"error,omitempty" example:"parsing time \"2024/01/01\""`
}

// NewErrorResponse builds an ErrorResponse stamped with the current time.
// A nil err leaves ErrorDetails empty.
func NewErrorResponse(status int, message string, err error) ErrorResponse {
	resp := ErrorResponse{
		Timestamp: time.Now(),
		Status:    status,
		Message:   message,
	}
	if err != nil {
		resp.ErrorDetails = err.Error()
	}
	return resp
}

// Error implements the error interface so the response can travel through c.Error.
func (e ErrorResponse) Error() string {
	if e.ErrorDetails == "" {
		return e.Message
	}
	return e.Message + ": " + e.ErrorDetails
}
