package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/speakup/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueueApp_Routes(t *testing.T) {
	app := newTestApp(t)
	h := app.srv.Handler

	tcases := []struct {
		name       string
		method     string
		path       string
		body       string
		statusCode int
	}{
		{name: "health", method: http.MethodGet, path: "/healthz", statusCode: http.StatusOK},
		{name: "create meeting", method: http.MethodPost, path: "/api/meetings", body: `{"facilitatorName":"Alice","meetingTitle":"Standup"}`, statusCode: http.StatusCreated},
		{name: "meeting info", method: http.MethodGet, path: "/api/meetings/ZZZZZZ", statusCode: http.StatusNotFound},
		{name: "wrong method", method: http.MethodDelete, path: "/api/meetings/ZZZZZZ", statusCode: http.StatusMethodNotAllowed},
		{name: "unknown path", method: http.MethodGet, path: "/nope", statusCode: http.StatusNotFound},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body)))
			assert.Equal(t, tc.statusCode, rr.Code)
		})
	}
}

func TestNewQueueApp_CORS(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/meetings", nil)
	req.Header.Set("Origin", "https://speakup.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	rr := httptest.NewRecorder()
	app.srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://speakup.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestQueueApp_StartShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.ServerAddr = "127.0.0.1:0"
	app := NewQueueApp(http.NewServeMux(), testutil.TestLogger(t), nil, nil, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	// give ListenAndServe a moment to bind
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}
