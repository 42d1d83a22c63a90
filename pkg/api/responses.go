package api

import (
	"time"

	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/logstore"
	"github.com/pulsewatch/pulsewatch/pkg/pulse"
	"github.com/pulsewatch/pulsewatch/pkg/state"
)

// ServiceSummary is one row in the GET /api/services response.
type ServiceSummary struct {
	Name                string       `json:"name"`
	URL                 string       `json:"url"`
	Tier                pulse.Tier   `json:"tier"`
	Status              pulse.Status `json:"status"`
	IsFlatlined         bool         `json:"isFlatlined"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	Uptime              float64      `json:"uptime"`
	LastCheck           *time.Time   `json:"lastCheck,omitempty"`
	LastSuccess         *time.Time   `json:"lastSuccess,omitempty"`
}

// ServiceDetail is the GET /api/services/:name response.
type ServiceDetail struct {
	ServiceSummary
	HeartbeatInterval int                  `json:"heartbeatInterval"`
	Checks            []config.CheckConfig `json:"checks"`
	ResponseHistory   []state.HistoryEntry `json:"responseHistory"`
	TodaySummary      logstore.DaySummary  `json:"todaySummary"`
}

// summarize builds a ServiceSummary from config plus tracked state. A
// service that has not been probed yet reports healthy with 100% uptime.
func summarize(svc *config.ServiceConfig, st state.ServiceState, tracked bool) ServiceSummary {
	out := ServiceSummary{
		Name:   svc.Name,
		URL:    svc.URL,
		Tier:   svc.Tier,
		Status: pulse.StatusHealthy,
		Uptime: 100,
	}
	if tracked {
		out.Status = st.CurrentStatus
		out.IsFlatlined = st.IsFlatlined
		out.ConsecutiveFailures = st.ConsecutiveFailures
		out.Uptime = st.Uptime()
		out.LastCheck = st.LastCheck
		out.LastSuccess = st.LastSuccess
	}
	return out
}
