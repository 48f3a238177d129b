package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/npezzotti/speakup/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_errorHandler(t *testing.T) {
	app := &QueueApp{log: testutil.TestLogger(t)}

	tcases := []struct {
		name  string
		panic any
	}{
		{name: "panic with error", panic: assert.AnError},
		{name: "panic with string", panic: "boom"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			h := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic(tc.panic)
			}))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.Equal(t, "close", rr.Header().Get("Connection"))
			e := decodeError(t, rr)
			assert.Equal(t, codeInternalError, e.Code)
		})
	}

	t.Run("no panic", func(t *testing.T) {
		h := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusTeapot, rr.Code)
	})
}

func Test_noStore(t *testing.T) {
	app := &QueueApp{log: testutil.TestLogger(t)}
	h := app.noStore(func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", rr.Header().Get("Cache-Control"))
}
