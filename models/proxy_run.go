package models

import "time"

// Proxy run states as stored in proxy_runs.state.
const (
	ProxyRunStateRunning = "running"
	ProxyRunStateStopped = "stopped"
	ProxyRunStateFaulted = "faulted"
)

type ProxyRun struct {
	ID           string     `json:"id"`
	Port         int        `json:"port"`
	PatternCount int        `json:"pattern_count"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	State        string     `json:"state"`
	Error        string     `json:"error,omitempty"`
}

// ProxyStatusResponse is what the control API returns for the proxy.
type ProxyStatusResponse struct {
	Running      bool       `json:"running"`
	Port         int        `json:"port,omitempty"`
	PatternCount int        `json:"pattern_count,omitempty"`
	RunID        string     `json:"run_id,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// ProxyStartRequest optionally overrides the effective proxy port.
type ProxyStartRequest struct {
	Port string `json:"port,omitempty" example:"12345"`
}
