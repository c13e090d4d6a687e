package core

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

// LoggerAddon writes one line per completed exchange to the proxy log.
type LoggerAddon struct {
	BaseAddon
	log *zerolog.Logger
}

func NewLoggerAddon(log *zerolog.Logger) *LoggerAddon {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &LoggerAddon{log: log}
}

func (a *LoggerAddon) Name() string { return "logger" }

func (a *LoggerAddon) OnResponse(f *Flow) {
	if f.Failed() {
		a.log.Error().Msgf("%s %s %s << upstream error: %v", flowMethod(f), flowURL(f), flowProto(f), f.Err)
		return
	}
	size, err := DecodedBodySize(f)
	if err != nil {
		a.log.Debug().Msgf("body size for %s fell back to encoded length: %v", flowURL(f), err)
	}
	line := FormatTransaction(flowMethod(f), flowURL(f), flowProto(f), f.Response.StatusCode, reasonPhrase(f.Response), size)
	a.log.WithLevel(SeverityFor(f.Response.StatusCode)).Msg(line)
}

// SeverityFor maps a status code to the log level of its transaction line.
func SeverityFor(status int) zerolog.Level {
	if status == http.StatusForbidden {
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// FormatTransaction renders "<METHOD> <URL> <HTTP-VERSION> << <STATUS> <REASON> <SIZE>KB".
func FormatTransaction(method, url, proto string, status int, reason string, size int) string {
	return fmt.Sprintf("%s %s %s << %d %s %.1fKB", method, url, proto, status, reason, float64(size)/1024)
}

func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, code))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

// DecodedBodySize returns the length of the response body after undoing its
// Content-Encoding. On a decode failure it returns the encoded length and the error.
func DecodedBodySize(f *Flow) (int, error) {
	body, err := f.ResponseBody()
	if err != nil {
		return len(body), err
	}
	if len(body) == 0 {
		return 0, nil
	}
	encodings := parseContentEncoding(f.Response.Header.Get("Content-Encoding"))
	if len(encodings) == 0 {
		return len(body), nil
	}
	n, err := decodedLength(body, encodings)
	if err != nil {
		return len(body), err
	}
	return n, nil
}

func parseContentEncoding(header string) []string {
	var out []string
	for _, part := range strings.Split(header, ",") {
		enc := strings.ToLower(strings.TrimSpace(part))
		if enc == "" || enc == "identity" {
			continue
		}
		out = append(out, enc)
	}
	return out
}

// decodedLength undoes the codings in reverse order of application and counts the result.
func decodedLength(body []byte, encodings []string) (int, error) {
	var r io.Reader = bytes.NewReader(body)
	var closers []func()
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	for i := len(encodings) - 1; i >= 0; i-- {
		switch encodings[i] {
		case "gzip", "x-gzip":
			gr, err := gzip.NewReader(r)
			if err != nil {
				return 0, fmt.Errorf("gzip: %w", err)
			}
			closers = append(closers, func() { gr.Close() })
			r = gr
		case "deflate":
			r = deflateReader(r)
		case "br":
			r = brotli.NewReader(r)
		case "zstd":
			zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return 0, fmt.Errorf("zstd: %w", err)
			}
			closers = append(closers, zr.Close)
			r = zr
		default:
			return 0, fmt.Errorf("unsupported content encoding %q", encodings[i])
		}
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// deflateReader accepts both zlib-wrapped and raw deflate streams; servers send either.
func deflateReader(r io.Reader) io.Reader {
	data, err := io.ReadAll(r)
	if err != nil {
		return &errReader{err: err}
	}
	if zr, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
		if out, err := io.ReadAll(zr); err == nil {
			return bytes.NewReader(out)
		}
	}
	return flate.NewReader(bytes.NewReader(data))
}

type errReader struct{ err error }

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }
