package core

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"streamline/logger"
	"strings"
	"sync"
	"time"

	"github.com/elazarl/goproxy"
	"github.com/rs/zerolog"
)

// RuntimeOptions configures one proxy runtime.
type RuntimeOptions struct {
	CA                 *tls.Certificate
	SkipUpstreamVerify bool
	HTTP2              bool
	Logger             *zerolog.Logger
	Metrics            *Metrics
	// Addons run after the default block, logger and metrics stages.
	Addons []Addon
}

// Runtime owns the goproxy server, the http.Server and the listener for one run.
type Runtime struct {
	proxy     *goproxy.ProxyHttpServer
	server    *http.Server
	transport *http.Transport
	listener  *trackingListener
	pipeline  *Pipeline
	log       *zerolog.Logger

	shutdownOnce sync.Once
	shutdownDone chan struct{}
	shutdownErr  error
}

// NewRuntime wires the interception pipeline onto ln. It takes ownership of ln.
func NewRuntime(ln net.Listener, patterns PatternSet, opts RuntimeOptions) (*Runtime, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Proxy()
	}
	ca := opts.CA
	if ca == nil {
		def, err := DefaultCA()
		if err != nil {
			return nil, err
		}
		ca = &def
	}

	addons := []Addon{NewBlockAddon(patterns), NewLoggerAddon(log)}
	if opts.Metrics != nil {
		addons = append(addons, NewMetricsAddon(opts.Metrics))
	}
	addons = append(addons, opts.Addons...)
	pipeline := NewPipeline(log, addons...)
	if opts.Metrics != nil {
		pipeline.OnPanic(opts.Metrics.RecordAddonPanic)
	}

	rt := &Runtime{
		listener:     newTrackingListener(ln),
		pipeline:     pipeline,
		log:          log,
		shutdownDone: make(chan struct{}),
	}
	rt.transport = newUpstreamTransport(opts.SkipUpstreamVerify, opts.HTTP2)
	rt.proxy = rt.newProxy(ca)
	rt.server = &http.Server{
		Handler:           rt.proxy,
		ReadHeaderTimeout: 30 * time.Second,
		ErrorLog:          stdlog.New(logger.PrintfLogger{L: log}, "", 0),
	}
	return rt, nil
}

func newUpstreamTransport(skipVerify, http2 bool) *http.Transport {
	return &http.Transport{
		// No upstream proxy chaining: always dial the origin directly.
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: skipVerify},
		DisableCompression:    true,
		ForceAttemptHTTP2:     http2,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func (rt *Runtime) newProxy(ca *tls.Certificate) *goproxy.ProxyHttpServer {
	proxy := goproxy.NewProxyHttpServer()
	proxy.Verbose = false
	proxy.Logger = logger.PrintfLogger{L: rt.log}
	proxy.Tr = rt.transport

	mitm := mitmConnect(ca)
	proxy.OnRequest().HandleConnect(goproxy.FuncHttpsHandler(func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
		rt.log.Debug().Msgf("CONNECT %s (session %d): intercepting", host, ctx.Session)
		return mitm, host
	}))

	upstream := goproxy.RoundTripperFunc(rt.roundTrip)
	proxy.OnRequest().DoFunc(func(r *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		// goproxy rebuilds MITM URLs from the CONNECT authority, which always carries the port.
		stripDefaultPort(r.URL)
		f := &Flow{Session: ctx.Session, Request: r, Started: time.Now()}
		ctx.UserData = f
		ctx.RoundTripper = upstream
		rt.pipeline.Request(f)
		if f.Blocked {
			rt.log.Debug().Msgf("blocked %s by pattern %q", r.URL.String(), f.MatchedPattern)
		}
		return f.Request, f.Response
	})

	proxy.OnResponse().DoFunc(func(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
		f, ok := ctx.UserData.(*Flow)
		if !ok || f == nil {
			f = &Flow{Session: ctx.Session, Request: ctx.Req}
		}
		f.Response = resp
		if resp == nil && f.Err == nil {
			f.Err = ctx.Error
		}
		rt.pipeline.Response(f)
		return f.Response
	})
	return proxy
}

// roundTrip forwards req upstream. A failed exchange is answered with a 502 and
// its error is kept on the flow, so the response hooks see it on both the plain
// and the MITM path.
func (rt *Runtime) roundTrip(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Response, error) {
	resp, err := rt.transport.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if f, ok := ctx.UserData.(*Flow); ok && f != nil {
		f.Err = err
	}
	return NewUpstreamErrorResponse(req, err), nil
}

// NewUpstreamErrorResponse builds the 502 sent to the client when the origin cannot be reached.
func NewUpstreamErrorResponse(r *http.Request, err error) *http.Response {
	resp := goproxy.NewResponse(r, goproxy.ContentTypeText, http.StatusBadGateway, "upstream error: "+err.Error())
	resp.Status = "502 Bad Gateway"
	resp.Proto, resp.ProtoMajor, resp.ProtoMinor = "HTTP/1.1", 1, 1
	return resp
}

// stripDefaultPort drops ":443" from https and ":80" from http URLs so matching
// and logging see the URL the client asked for.
func stripDefaultPort(u *url.URL) {
	if u == nil {
		return
	}
	port := u.Port()
	if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
		u.Host = strings.TrimSuffix(u.Host, ":"+port)
	}
}

// Addr is the address the runtime is bound to.
func (rt *Runtime) Addr() net.Addr {
	return rt.listener.Addr()
}

// Serve blocks until the runtime stops. A graceful shutdown returns nil once the
// port has been released. Anything else, including a panic in the accept loop, is returned.
func (rt *Runtime) Serve() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in serve loop: %v\n%s", r, debug.Stack())
		}
	}()
	err = rt.server.Serve(rt.listener)
	if errors.Is(err, http.ErrServerClosed) {
		<-rt.shutdownDone
		return nil
	}
	return err
}

// Shutdown stops accepting and drains in-flight exchanges, including hijacked
// CONNECT tunnels, until ctx expires. Whatever remains is then force-closed.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.shutdownOnce.Do(func() {
		defer close(rt.shutdownDone)
		err := rt.server.Shutdown(ctx)
		if err == nil {
			err = rt.listener.waitIdle(ctx)
		}
		if n := rt.listener.closeAll(); n > 0 {
			rt.log.Warn().Msgf("force-closed %d connection(s) still open after drain", n)
		}
		rt.transport.CloseIdleConnections()
		rt.shutdownErr = err
	})
	<-rt.shutdownDone
	return rt.shutdownErr
}

// abort tears everything down without draining. Used after a fault.
func (rt *Runtime) abort() {
	rt.shutdownOnce.Do(func() {
		defer close(rt.shutdownDone)
		rt.server.Close()
		rt.listener.Close()
		rt.listener.closeAll()
		rt.transport.CloseIdleConnections()
	})
}

// trackingListener remembers accepted connections so hijacked ones can be closed on shutdown.
type trackingListener struct {
	net.Listener

	mu    sync.Mutex
	conns map[*trackedConn]struct{}
	once  sync.Once
}

func newTrackingListener(ln net.Listener) *trackingListener {
	return &trackingListener{Listener: ln, conns: make(map[*trackedConn]struct{})}
}

func (l *trackingListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	tc := &trackedConn{Conn: c, owner: l}
	l.mu.Lock()
	l.conns[tc] = struct{}{}
	l.mu.Unlock()
	return tc, nil
}

func (l *trackingListener) Close() error {
	var err error
	l.once.Do(func() { err = l.Listener.Close() })
	return err
}

func (l *trackingListener) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

func (l *trackingListener) waitIdle(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for l.active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (l *trackingListener) closeAll() int {
	l.mu.Lock()
	conns := make([]*trackedConn, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	return len(conns)
}

func (l *trackingListener) forget(c *trackedConn) {
	l.mu.Lock()
	delete(l.conns, c)
	l.mu.Unlock()
}

type trackedConn struct {
	net.Conn
	owner *trackingListener
	once  sync.Once
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { c.owner.forget(c) })
	return err
}
