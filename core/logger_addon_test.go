package core

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTransaction(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		proto  string
		status int
		reason string
		size   int
		want   string
	}{
		{"empty body", "GET", "http://example.com/", "HTTP/1.1", 200, "OK", 0, "GET http://example.com/ HTTP/1.1 << 200 OK 0.0KB"},
		{"blocked", "GET", "http://ads.example.com/x", "HTTP/1.1", 403, "Forbidden", 20, "GET http://ads.example.com/x HTTP/1.1 << 403 Forbidden 0.0KB"},
		{"one kilobyte", "POST", "https://api.example.com/save", "HTTP/2.0", 201, "Created", 1024, "POST https://api.example.com/save HTTP/2.0 << 201 Created 1.0KB"},
		{"rounding", "GET", "http://x/", "HTTP/1.0", 404, "Not Found", 1536, "GET http://x/ HTTP/1.0 << 404 Not Found 1.5KB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTransaction(tt.method, tt.url, tt.proto, tt.status, tt.reason, tt.size))
		})
	}
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, SeverityFor(403))
	for _, code := range []int{200, 204, 301, 404, 500, 502} {
		assert.Equal(t, zerolog.InfoLevel, SeverityFor(code), "status %d", code)
	}
}

func compress(t *testing.T, enc string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch enc {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "zlib":
		w = zlib.NewWriter(&buf)
	case "deflate":
		w, err = flate.NewWriter(&buf, flate.DefaultCompression)
	case "br":
		w = brotli.NewWriter(&buf)
	case "zstd":
		w, err = zstd.NewWriter(&buf)
	default:
		t.Fatalf("unknown encoding %s", enc)
	}
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func flowWithBody(body []byte, encoding string) *Flow {
	h := http.Header{}
	if encoding != "" {
		h.Set("Content-Encoding", encoding)
	}
	return &Flow{
		Request: httptest.NewRequest(http.MethodGet, "http://example.com/asset", nil),
		Response: &http.Response{
			StatusCode: 200,
			Status:     "200 OK",
			Header:     h,
			Body:       io.NopCloser(bytes.NewReader(body)),
		},
	}
}

func TestDecodedBodySize(t *testing.T) {
	plain := []byte(strings.Repeat("streamline asset payload ", 200))

	tests := []struct {
		name     string
		body     []byte
		encoding string
	}{
		{"identity", plain, ""},
		{"gzip", compress(t, "gzip", plain), "gzip"},
		{"deflate zlib wrapped", compress(t, "zlib", plain), "deflate"},
		{"deflate raw", compress(t, "deflate", plain), "deflate"},
		{"brotli", compress(t, "br", plain), "br"},
		{"zstd", compress(t, "zstd", plain), "zstd"},
		{"stacked", compress(t, "br", compress(t, "gzip", plain)), "gzip, br"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := flowWithBody(tt.body, tt.encoding)
			n, err := DecodedBodySize(f)
			require.NoError(t, err)
			assert.Equal(t, len(plain), n)

			forwarded, err := io.ReadAll(f.Response.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.body, forwarded, "the client still receives the encoded body")
		})
	}
}

func TestDecodedBodySizeFallsBackOnBadEncoding(t *testing.T) {
	f := flowWithBody([]byte("not gzip at all"), "gzip")
	n, err := DecodedBodySize(f)
	assert.Error(t, err)
	assert.Equal(t, len("not gzip at all"), n)

	f = flowWithBody([]byte("abc"), "compress")
	n, err = DecodedBodySize(f)
	assert.Error(t, err)
	assert.Equal(t, 3, n)
}

func TestLoggerAddonLines(t *testing.T) {
	log, buf := newTestLogger()
	a := NewLoggerAddon(log)

	ok := flowWithBody(compress(t, "gzip", bytes.Repeat([]byte("a"), 2048)), "gzip")
	a.OnResponse(ok)

	blocked := &Flow{Request: httptest.NewRequest(http.MethodGet, "http://ads.example.com/b.js", nil)}
	NewBlockAddon(PatternSetOf("ads")).OnRequest(blocked)
	a.OnResponse(blocked)

	failed := &Flow{Request: httptest.NewRequest(http.MethodGet, "http://down.example.com/", nil), Err: errors.New("dial tcp: connection refused")}
	a.OnResponse(failed)

	lines := buf.Lines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "- INFO - GET http://example.com/asset HTTP/1.1 << 200 OK 2.0KB")
	assert.Contains(t, lines[1], "- WARNING - GET http://ads.example.com/b.js HTTP/1.1 << 403 Forbidden 0.0KB")
	assert.Contains(t, lines[2], "- ERROR - GET http://down.example.com/ HTTP/1.1 << upstream error: dial tcp: connection refused")
}

func TestReasonPhrase(t *testing.T) {
	assert.Equal(t, "Not Found", reasonPhrase(&http.Response{StatusCode: 404, Status: "404 Not Found"}))
	assert.Equal(t, "Custom Reason", reasonPhrase(&http.Response{StatusCode: 299, Status: "299 Custom Reason"}))
	assert.Equal(t, "Forbidden", reasonPhrase(&http.Response{StatusCode: 403}))
}
