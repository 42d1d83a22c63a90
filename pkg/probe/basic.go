package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pulsewatch/pulsewatch/pkg/config"
)

// defaultQuery is the minimal GraphQL liveness query sent when a check does
// not declare its own.
const defaultQuery = "{ __typename }"

// basicStrategy POSTs a minimal JSON query and requires a 200 with a valid
// JSON body. No authentication.
type basicStrategy struct {
	client *http.Client
}

func (s *basicStrategy) Probe(ctx context.Context, svc *config.ServiceConfig, check *config.CheckConfig) Result {
	query := check.Query
	if query == "" {
		query = defaultQuery
	}

	res, raw := postJSON(ctx, s.client, svc, map[string]any{"query": query}, false)
	if raw == nil {
		return res
	}
	return classifyBasic(res, raw)
}

// classifyBasic applies the basic success rule: 200 + parseable JSON.
func classifyBasic(res Result, raw []byte) Result {
	parsed, err := decodeBody(raw)
	if err != nil {
		res.Error = fmt.Sprintf("invalid response body: %v", err)
		return res
	}
	res.Data = parsed.Data

	if res.HTTPStatus != http.StatusOK {
		res.Error = fmt.Sprintf("HTTP %d", res.HTTPStatus)
		return res
	}
	res.Success = true
	return res
}

// authenticatedStrategy behaves like basic but sends a bearer token when the
// service has one, and treats GraphQL errors mentioning authentication as a
// hard failure.
type authenticatedStrategy struct {
	client *http.Client
}

func (s *authenticatedStrategy) Probe(ctx context.Context, svc *config.ServiceConfig, check *config.CheckConfig) Result {
	query := check.Query
	if query == "" {
		query = defaultQuery
	}

	res, raw := postJSON(ctx, s.client, svc, map[string]any{"query": query}, true)
	if raw == nil {
		return res
	}

	parsed, err := decodeBody(raw)
	if err != nil {
		res.Error = fmt.Sprintf("invalid response body: %v", err)
		return res
	}
	res.Data = parsed.Data

	if hasAuthError(parsed.Errors) {
		res.Error = "Authentication error"
		return res
	}
	if res.HTTPStatus != http.StatusOK {
		res.Error = fmt.Sprintf("HTTP %d", res.HTTPStatus)
		return res
	}
	res.Success = true
	return res
}

// hasAuthError reports whether any GraphQL error message looks like an
// authentication failure (case-insensitive "auth" or "unauthorized").
func hasAuthError(errs []graphQLError) bool {
	for _, e := range errs {
		msg := strings.ToLower(e.Message)
		if strings.Contains(msg, "auth") || strings.Contains(msg, "unauthorized") {
			return true
		}
	}
	return false
}
