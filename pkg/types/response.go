// Package types holds the wire envelopes shared by every endpoint. The
// checkout front-end unwraps either {"data": ...} or {"error": ...}.
package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the serialized form of pkg/errors; Details carries validation
// field maps and config diagnostics when the code allows exposing them.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
