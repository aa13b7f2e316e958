// Package types holds the JSON envelopes every storefront endpoint responds
// with: payloads under "data", failures under "error".
package types

// SuccessEnvelope wraps any successful response body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a failure. Details are only present for
// error codes whose internals are safe to show a shopper, such as the
// per-field validation map or a stock-shortage breakdown.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError for the wire.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
