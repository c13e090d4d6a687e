// Package update asks the release server for the latest published version.
package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a check when the caller's context has no deadline.
const DefaultTimeout = 15 * time.Second

// maxBody caps how much of the version file is read.
const maxBody = 4096

var ErrEmptyVersion = errors.New("version file is empty")

// Result is the outcome of a check.
type Result struct {
	Current         string `json:"current"`
	Latest          string `json:"latest"`
	UpdateAvailable bool   `json:"update_available"`
}

// Check fetches url, a plain-text file holding the latest version, and compares
// its trimmed content with current. Any difference counts as an update.
// A nil client uses a direct, proxy-less client.
func Check(ctx context.Context, client *http.Client, url, current string) (Result, error) {
	res := Result{Current: current}
	if client == nil {
		client = &http.Client{Transport: &http.Transport{Proxy: nil}}
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return res, fmt.Errorf("building update request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return res, fmt.Errorf("unable to reach %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("update server %s returned %s", url, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return res, fmt.Errorf("reading version from %s: %w", url, err)
	}
	res.Latest = strings.TrimSpace(string(body))
	if res.Latest == "" {
		return res, ErrEmptyVersion
	}
	res.UpdateAvailable = res.Latest != strings.TrimSpace(current)
	return res, nil
}
