// Package probe implements the probe strategies and the engine that runs
// one probe end to end: lifecycle events, strategy invocation, pulse
// classification, and outcome routing onto the event bus.
package probe

// Result is the outcome of a single strategy invocation. Every strategy
// returns a Result; transport errors are mapped into it, never raised.
type Result struct {
	// Success is true only when the upstream answered with a well-formed,
	// error-free response.
	Success bool `json:"success"`
	// HasResponse is true iff a transport-level response was received,
	// regardless of HTTP status. The state machine uses it to distinguish
	// "unreachable" (flatline candidate) from "observably sick".
	HasResponse bool `json:"hasResponse"`
	// HTTPStatus is the response status code, 0 when no response arrived.
	HTTPStatus int `json:"httpStatus"`
	// Data is the decoded response body, when one was parseable.
	Data any `json:"data,omitempty"`
	// Error describes the failure, empty on success.
	Error string `json:"error,omitempty"`
}

// failure builds a no-response failure Result for a transport-level error.
func failure(reason string) Result {
	return Result{Success: false, HasResponse: false, Error: reason}
}
