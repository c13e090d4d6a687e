package core

import (
	"net/http"

	"github.com/elazarl/goproxy"
)

// BlockedBody is the exact body of every synthetic block response.
const BlockedBody = "This URL is blocked."

// BlockAddon short-circuits requests whose URL contains an active pattern.
type BlockAddon struct {
	BaseAddon
	patterns PatternSet
}

func NewBlockAddon(patterns PatternSet) *BlockAddon {
	return &BlockAddon{patterns: patterns}
}

func (a *BlockAddon) Name() string { return "block" }

func (a *BlockAddon) OnRequest(f *Flow) {
	if f.Request == nil || f.Request.URL == nil {
		return
	}
	pattern, ok := a.patterns.Match(f.Request.URL.String())
	if !ok {
		return
	}
	f.Blocked = true
	f.MatchedPattern = pattern
	f.Response = NewBlockedResponse(f.Request)
}

// NewBlockedResponse builds the 403 text/plain reply. The request is never forwarded.
func NewBlockedResponse(r *http.Request) *http.Response {
	resp := goproxy.NewResponse(r, goproxy.ContentTypeText, http.StatusForbidden, BlockedBody)
	resp.Status = "403 Forbidden"
	resp.Proto, resp.ProtoMajor, resp.ProtoMinor = "HTTP/1.1", 1, 1
	return resp
}
