package probe

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pulsewatch/pulsewatch/pkg/config"
)

// queryStrategy runs the caller-supplied GraphQL query with variables and
// fails on any non-empty errors array, surfacing the first error message.
type queryStrategy struct {
	client *http.Client
}

func (s *queryStrategy) Probe(ctx context.Context, svc *config.ServiceConfig, check *config.CheckConfig) Result {
	query := check.Query
	if query == "" {
		query = defaultQuery
	}

	payload := map[string]any{"query": query}
	if len(check.Variables) > 0 {
		payload["variables"] = check.Variables
	}

	res, raw := postJSON(ctx, s.client, svc, payload, true)
	if raw == nil {
		return res
	}

	parsed, err := decodeBody(raw)
	if err != nil {
		res.Error = fmt.Sprintf("invalid response body: %v", err)
		return res
	}
	res.Data = parsed.Data

	if len(parsed.Errors) > 0 {
		res.Error = parsed.Errors[0].Message
		return res
	}
	if res.HTTPStatus != http.StatusOK {
		res.Error = fmt.Sprintf("HTTP %d", res.HTTPStatus)
		return res
	}
	res.Success = true
	return res
}
