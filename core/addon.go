package core

import (
	"bytes"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Flow is one request/response exchange as seen by the addon pipeline.
// A Flow belongs to a single connection goroutine and is never shared.
type Flow struct {
	Session        int64
	Request        *http.Request
	Response       *http.Response
	Blocked        bool
	MatchedPattern string
	Started        time.Time
	// Err is the upstream error when Response is nil.
	Err error

	body     []byte
	bodyRead bool
}

// Failed reports whether the exchange never got a response from the origin.
func (f *Flow) Failed() bool {
	return f.Err != nil || f.Response == nil
}

// ResponseBody reads the response body once, restores it for the client and
// returns the raw (still encoded) bytes.
func (f *Flow) ResponseBody() ([]byte, error) {
	if f.bodyRead {
		return f.body, nil
	}
	f.bodyRead = true
	if f.Response == nil || f.Response.Body == nil || f.Response.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(f.Response.Body)
	f.Response.Body.Close()
	f.Response.Body = io.NopCloser(bytes.NewReader(body))
	f.body = body
	return body, err
}

// Addon is one pipeline stage. OnRequest may set f.Response to short-circuit the exchange.
type Addon interface {
	Name() string
	OnRequest(f *Flow)
	OnResponse(f *Flow)
}

// BaseAddon gives embedders no-op hooks.
type BaseAddon struct{}

func (BaseAddon) OnRequest(*Flow)  {}
func (BaseAddon) OnResponse(*Flow) {}

// Pipeline runs addons in registration order.
type Pipeline struct {
	addons  []Addon
	log     *zerolog.Logger
	onPanic func(addon string)
}

func NewPipeline(log *zerolog.Logger, addons ...Addon) *Pipeline {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Pipeline{addons: append([]Addon(nil), addons...), log: log}
}

// OnPanic registers a callback invoked with the addon name after a recovered panic.
func (p *Pipeline) OnPanic(fn func(addon string)) {
	p.onPanic = fn
}

func (p *Pipeline) Addons() []Addon {
	return append([]Addon(nil), p.addons...)
}

// Request stops at the first stage that sets a response.
func (p *Pipeline) Request(f *Flow) {
	for _, a := range p.addons {
		p.invoke(a, "request", f, a.OnRequest)
		if f.Response != nil {
			return
		}
	}
}

// Response runs every stage.
func (p *Pipeline) Response(f *Flow) {
	for _, a := range p.addons {
		p.invoke(a, "response", f, a.OnResponse)
	}
}

func (p *Pipeline) invoke(a Addon, hook string, f *Flow, fn func(*Flow)) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Msgf("addon %s panicked in %s hook for %s: %v\n%s", a.Name(), hook, flowURL(f), r, debug.Stack())
			if p.onPanic != nil {
				p.onPanic(a.Name())
			}
		}
	}()
	fn(f)
}

func flowURL(f *Flow) string {
	if f == nil || f.Request == nil || f.Request.URL == nil {
		return "<no request>"
	}
	return f.Request.URL.String()
}

func flowMethod(f *Flow) string {
	if f == nil || f.Request == nil {
		return "-"
	}
	return f.Request.Method
}

func flowProto(f *Flow) string {
	if f == nil || f.Request == nil || f.Request.Proto == "" {
		return "HTTP/1.1"
	}
	return f.Request.Proto
}
