package responses

// SuccessEnvelope wraps payloads of non-webhook endpoints.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body. Details appear only for codes that allow them.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
