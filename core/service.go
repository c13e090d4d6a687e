package core

import (
	"context"
	"errors"
	"fmt"
	"streamline/config"
	"streamline/database"
	"streamline/models"
)

var ErrInvalidPort = errors.New("invalid proxy port")

// ProxyService starts runs from the rule store. The CLI and the control API
// share it so both resolve ports and patterns the same way.
type ProxyService struct {
	Controller *Controller
	// ConfigPort is proxy.port from the configuration, the lowest-precedence port.
	ConfigPort string
}

func NewProxyService(c *Controller, configPort string) *ProxyService {
	return &ProxyService{Controller: c, ConfigPort: configPort}
}

// EffectivePort resolves override > stored proxy_port setting > config.
func (s *ProxyService) EffectivePort(override string) (int, error) {
	stored, err := database.GetSetting(models.ProxyPortKey)
	if err != nil {
		return 0, err
	}
	port, err := config.ResolvePort(override, stored, s.ConfigPort)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPort, err)
	}
	return port, nil
}

// ActivePatterns snapshots the active rules.
func (s *ProxyService) ActivePatterns() (PatternSet, error) {
	rules, err := database.GetAllBlockRules()
	if err != nil {
		return PatternSet{}, fmt.Errorf("loading block rules: %w", err)
	}
	return NewPatternSet(rules), nil
}

// Start snapshots the active rules and starts a run on the effective port.
// Rule edits made afterwards do not affect the run.
func (s *ProxyService) Start(portOverride string) (*Run, error) {
	port, err := s.EffectivePort(portOverride)
	if err != nil {
		return nil, err
	}
	patterns, err := s.ActivePatterns()
	if err != nil {
		return nil, err
	}
	return s.Controller.Start(port, patterns)
}

func (s *ProxyService) Stop(ctx context.Context) error {
	return s.Controller.Stop(ctx)
}

// Status renders the controller state for API clients.
func (s *ProxyService) Status() models.ProxyStatusResponse {
	st := s.Controller.Status()
	resp := models.ProxyStatusResponse{
		Running:      st.Running,
		Port:         st.Port,
		PatternCount: st.PatternCount,
		RunID:        st.RunID,
		LastError:    st.LastError,
	}
	if st.Running {
		started := st.StartedAt
		resp.StartedAt = &started
	}
	return resp
}
