package core

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"streamline/logger"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultShutdownTimeout bounds the drain when Stop's context has no deadline.
const DefaultShutdownTimeout = 5 * time.Second

var ErrNotRunning = errors.New("proxy is not running")

// RunRecorder persists run history. Recorder failures are logged, never fatal.
type RunRecorder interface {
	RunStarted(id string, port, patternCount int, startedAt time.Time) error
	RunEnded(id string, endedAt time.Time, runErr error) error
}

type ControllerOptions struct {
	// ListenHost is the bind address. Empty means all interfaces.
	ListenHost         string
	CA                 *tls.Certificate
	SkipUpstreamVerify bool
	HTTP2              bool
	ShutdownTimeout    time.Duration
	Logger             *zerolog.Logger
	Metrics            *Metrics
	Recorder           RunRecorder
	Addons             []Addon
	// Listen overrides net.Listen.
	Listen func(network, address string) (net.Listener, error)
}

// Status is a point-in-time view of the controller.
type Status struct {
	Running      bool
	Port         int
	PatternCount int
	StartedAt    time.Time
	RunID        string
	LastError    string
}

// Controller validates start preconditions and owns at most one active run.
type Controller struct {
	bus  *EventBus
	opts ControllerOptions
	log  *zerolog.Logger

	mu      sync.Mutex
	active  *Run
	lastErr error
}

func NewController(bus *EventBus, opts ControllerOptions) *Controller {
	if bus == nil {
		bus = NewEventBus()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Listen == nil {
		opts.Listen = net.Listen
	}
	log := opts.Logger
	if log == nil {
		log = logger.Proxy()
	}
	return &Controller{bus: bus, opts: opts, log: log}
}

func (c *Controller) Bus() *EventBus {
	return c.bus
}

// Run is one started proxy instance.
type Run struct {
	ID           string
	Port         int
	PatternCount int
	StartedAt    time.Time

	rt              *Runtime
	shutdownTimeout time.Duration
	done            chan struct{}
	err             error
}

// Done is closed once the run has terminated and its port is released.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Err is the terminal error: nil after a graceful stop, a *RuntimeFault otherwise.
// It is only meaningful after Done is closed.
func (r *Run) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

func (r *Run) Addr() net.Addr {
	return r.rt.Addr()
}

// Stop drains the run and waits for it to terminate.
func (r *Run) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.shutdownTimeout)
		defer cancel()
	}
	shutdownErr := r.rt.Shutdown(ctx)
	<-r.done
	if r.err != nil {
		return r.err
	}
	if shutdownErr != nil && !errors.Is(shutdownErr, context.DeadlineExceeded) && !errors.Is(shutdownErr, context.Canceled) {
		return fmt.Errorf("shutting down proxy run %s: %w", r.ID, shutdownErr)
	}
	return nil
}

// Start checks, in order, that patterns is non-empty, that no run is active and
// that port can be bound. The bound listener is handed straight to the serving
// goroutine. Start returns as soon as that goroutine is spawned.
func (c *Controller) Start(port int, patterns PatternSet) (*Run, error) {
	const op = "proxy.start"
	if patterns.Empty() {
		return nil, &StartError{Kind: NoActiveRules, Op: op, Port: port}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return nil, &StartError{Kind: AlreadyRunning, Op: op, Port: c.active.Port}
	}
	if port < 1 || port > 65535 {
		return nil, &StartError{Kind: PortUnavailable, Op: op, Port: port, Err: fmt.Errorf("port must be between 1 and 65535")}
	}

	addr := net.JoinHostPort(c.opts.ListenHost, strconv.Itoa(port))
	ln, err := c.opts.Listen("tcp", addr)
	if err != nil {
		return nil, &StartError{Kind: PortUnavailable, Op: op, Port: port, Err: err}
	}

	rt, err := NewRuntime(ln, patterns, RuntimeOptions{
		CA:                 c.opts.CA,
		SkipUpstreamVerify: c.opts.SkipUpstreamVerify,
		HTTP2:              c.opts.HTTP2,
		Logger:             c.log,
		Metrics:            c.opts.Metrics,
		Addons:             c.opts.Addons,
	})
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("%s: building runtime: %w", op, err)
	}

	run := &Run{
		ID:              uuid.NewString(),
		Port:            port,
		PatternCount:    patterns.Len(),
		StartedAt:       time.Now(),
		rt:              rt,
		shutdownTimeout: c.opts.ShutdownTimeout,
		done:            make(chan struct{}),
	}
	c.active = run
	c.lastErr = nil

	if c.opts.Recorder != nil {
		if err := c.opts.Recorder.RunStarted(run.ID, run.Port, run.PatternCount, run.StartedAt); err != nil {
			c.log.Error().Msgf("recording start of run %s: %v", run.ID, err)
		}
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.RunStarted(run.PatternCount)
	}
	c.log.Info().Msgf("Proxy run %s listening on %s with %d active pattern(s)", run.ID, rt.Addr(), run.PatternCount)
	c.bus.Publish(Event{Type: EventStarted, RunID: run.ID, Port: run.Port, PatternCount: run.PatternCount, At: run.StartedAt})

	go c.serve(run)
	return run, nil
}

func (c *Controller) serve(run *Run) {
	var runErr error
	if err := run.rt.Serve(); err != nil {
		runErr = &RuntimeFault{RunID: run.ID, Err: err}
		c.log.Error().Msgf("Proxy run %s stopped unexpectedly: %v", run.ID, err)
		run.rt.abort()
	}

	c.mu.Lock()
	if c.active == run {
		c.active = nil
	}
	c.lastErr = runErr
	c.mu.Unlock()

	run.err = runErr
	close(run.done)

	ended := time.Now()
	state, evType := "stopped", EventStopped
	if runErr != nil {
		state, evType = "faulted", EventFaulted
	} else {
		c.log.Info().Msgf("Proxy run %s stopped after %s", run.ID, ended.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if c.opts.Recorder != nil {
		if err := c.opts.Recorder.RunEnded(run.ID, ended, runErr); err != nil {
			c.log.Error().Msgf("recording end of run %s: %v", run.ID, err)
		}
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.RunEnded(state)
	}
	c.bus.Publish(Event{Type: evType, RunID: run.ID, Port: run.Port, PatternCount: run.PatternCount, Err: runErr, At: ended})
}

// Stop gracefully shuts down the active run.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	run := c.active
	c.mu.Unlock()
	if run == nil {
		return ErrNotRunning
	}
	return run.Stop(ctx)
}

// Active returns the running instance, or nil.
func (c *Controller) Active() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if c.active != nil {
		s.Running = true
		s.Port = c.active.Port
		s.PatternCount = c.active.PatternCount
		s.StartedAt = c.active.StartedAt
		s.RunID = c.active.ID
	}
	return s
}

// IsPortAvailable binds host:port and releases it immediately.
func IsPortAvailable(host string, port int) bool {
	if port < 1 || port > 65535 {
		return false
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
