package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func versionServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		current   string
		wantNewer bool
	}{
		{"same version", "v1.0.0\n", "v1.0.0", false},
		{"newer", "  v1.1.0 \r\n", "v1.0.0", true},
		{"any difference counts", "v0.9.0", "v1.0.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := versionServer(t, http.StatusOK, tt.body)
			res, err := Check(context.Background(), srv.Client(), srv.URL, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNewer, res.UpdateAvailable)
			assert.Equal(t, tt.current, res.Current)
		})
	}
}

func TestCheckErrors(t *testing.T) {
	srv := versionServer(t, http.StatusNotFound, "nope")
	_, err := Check(context.Background(), nil, srv.URL, "v1.0.0")
	assert.ErrorContains(t, err, "404")

	srv = versionServer(t, http.StatusOK, "  \n")
	_, err = Check(context.Background(), nil, srv.URL, "v1.0.0")
	assert.ErrorIs(t, err, ErrEmptyVersion)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = Check(ctx, nil, slow.URL, "v1.0.0")
	assert.Error(t, err)
}
