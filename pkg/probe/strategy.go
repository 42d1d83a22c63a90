package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pulsewatch/pulsewatch/pkg/config"
)

// maxBodyBytes caps how much of an upstream response body is read.
const maxBodyBytes = 1 << 20

// timeoutError is the canonical error string for an expired probe deadline.
const timeoutError = "Request timeout"

// Strategy performs one probe against a service endpoint. Implementations
// must honor ctx cancellation (the engine sets the per-check deadline) and
// must convert transport errors into a failure Result rather than returning
// an error.
type Strategy interface {
	Probe(ctx context.Context, svc *config.ServiceConfig, check *config.CheckConfig) Result
}

// Registry resolves strategy identifiers to implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates a registry with the three built-in strategies, all
// sharing the given HTTP client. A nil client gets a default one; the
// client carries no timeout of its own; the per-check context deadline is
// the only probe timeout.
func NewRegistry(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{}
	}
	return &Registry{
		strategies: map[string]Strategy{
			config.StrategyBasic:         &basicStrategy{client: client},
			config.StrategyAuthenticated: &authenticatedStrategy{client: client},
			config.StrategyQuery:         &queryStrategy{client: client},
		},
	}
}

// Get returns the strategy for id, or nil when unknown.
func (r *Registry) Get(id string) Strategy {
	return r.strategies[id]
}

// Register adds or replaces a strategy under the given identifier.
func (r *Registry) Register(id string, s Strategy) {
	r.strategies[id] = s
}

// graphQLError is one entry of a GraphQL-style errors array.
type graphQLError struct {
	Message string `json:"message"`
}

// graphQLBody is the decoded upstream response shape the strategies inspect.
type graphQLBody struct {
	Data   any            `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// postJSON issues the probe POST and normalizes the outcome. On a transport
// failure the returned Result has HasResponse=false; on any HTTP response
// HasResponse=true and HTTPStatus is set. rawBody is non-nil whenever a
// response body was read.
func postJSON(ctx context.Context, client *http.Client, svc *config.ServiceConfig, payload any, authorized bool) (Result, []byte) {
	body, err := json.Marshal(payload)
	if err != nil {
		return failure(fmt.Sprintf("encode request: %v", err)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.URL, bytes.NewReader(body))
	if err != nil {
		return failure(fmt.Sprintf("create request: %v", err)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	if authorized && svc.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+svc.AuthToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return failure(timeoutError), nil
		}
		return failure(err.Error()), nil
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		// A deadline expiring mid-read counts as a timeout, not a response.
		if errors.Is(readErr, context.DeadlineExceeded) {
			return failure(timeoutError), nil
		}
		return Result{
			HasResponse: true,
			HTTPStatus:  resp.StatusCode,
			Error:       fmt.Sprintf("read response: %v", readErr),
		}, nil
	}
	return Result{HasResponse: true, HTTPStatus: resp.StatusCode}, raw
}

// decodeBody parses the response body into a graphQLBody. A nil error means
// the body was valid JSON; arrays and scalars are valid too, they just carry
// no data or errors fields.
func decodeBody(raw []byte) (*graphQLBody, error) {
	var parsed graphQLBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if json.Valid(raw) {
			return &graphQLBody{}, nil
		}
		return nil, err
	}
	return &parsed, nil
}
