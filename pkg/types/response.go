package types

// SuccessEnvelope wraps payloads of the non-cart endpoints.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public body of a rejected request. RequestID echoes the
// X-Request-Id header so clients can quote it back.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewErrorEnvelope builds an error body, dropping details that carry nothing.
func NewErrorEnvelope(code, message, requestID string, details any) ErrorEnvelope {
	body := APIError{Code: code, Message: message, RequestID: requestID}
	switch d := details.(type) {
	case nil:
	case map[string]any:
		if len(d) > 0 {
			body.Details = d
		}
	default:
		body.Details = d
	}
	return ErrorEnvelope{Error: body}
}
