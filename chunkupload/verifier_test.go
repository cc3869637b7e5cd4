package chunkupload

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    int64
		wantErr bool
	}{
		{name: "bytes prefix", header: "bytes=0-1048575", want: 1048576},
		{name: "without prefix", header: "0-99", want: 100},
		{name: "single byte", header: "bytes=0-0", want: 1},
		{name: "surrounding whitespace", header: " bytes=0-9 ", want: 10},
		{name: "missing", header: "", wantErr: true},
		{name: "no separator", header: "bytes=100", wantErr: true},
		{name: "not a number", header: "bytes=0-abc", wantErr: true},
		{name: "end before start", header: "bytes=10-5", wantErr: true},
		{name: "multiple ranges", header: "bytes=0-99,200-299", wantErr: true},
		{name: "unknown end", header: "bytes=0-", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseRange() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseRange() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifier_Verify(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		rangeValue string
		want       int64
		wantErr    error
	}{
		{name: "confirmed bytes", status: http.StatusPermanentRedirect, rangeValue: "bytes=0-2047", want: 2048},
		{name: "unexpected status", status: http.StatusOK, rangeValue: "bytes=0-2047", wantErr: ErrVerifyFailed},
		{name: "server error", status: http.StatusInternalServerError, wantErr: ErrVerifyFailed},
		{name: "missing Range header", status: http.StatusPermanentRedirect, wantErr: ErrProtocolViolation},
		{name: "malformed Range header", status: http.StatusPermanentRedirect, rangeValue: "bytes=zero-ten", wantErr: ErrProtocolViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "bytes */*", r.Header.Get("Content-Range"))
				assert.Equal(t, int64(0), r.ContentLength)
				if tt.rangeValue != "" {
					w.Header().Set("Range", tt.rangeValue)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			verifier := NewVerifier(DefaultHTTPClient(), log.NewLogger())
			got, err := verifier.Verify(context.Background(), server.URL)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.False(t, errors.Is(err, ErrTransientSend), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifier_Verify_DoesNotFollowRedirect(t *testing.T) {
	redirected := false
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirected = true
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", target.URL)
		w.Header().Set("Range", "bytes=0-9")
		w.WriteHeader(http.StatusPermanentRedirect)
	}))
	defer server.Close()

	verifier := NewVerifier(DefaultHTTPClient(), log.NewLogger())
	got, err := verifier.Verify(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got)
	assert.False(t, redirected)
}
