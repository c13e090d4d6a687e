package models

// ErrorResponse is a generic error response structure for API
type ErrorResponse struct {
	Message string `json:"message" example:"Error message describing the issue"`
	Kind    string `json:"kind,omitempty" example:"PortUnavailable"`
}

// MessageResponse is a generic success body.
type MessageResponse struct {
	Message string `json:"message"`
}
