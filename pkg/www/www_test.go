package www

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"
)

func TestHandlePanics(t *testing.T) {
	log := logs.NewTestingLog(t)
	router := httprouter.New()
	Handle(log, router, "GET", "/missing", func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		PanicNotFound()
	})
	Handle(log, router, "GET", "/broken", func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		Check(errors.New("disk on fire"))
	})
	Handle(log, router, "GET", "/json", func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		SendJSON(w, map[string]int{"eggs": 3})
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		return rec
	}

	rec := get("/missing")
	require.Equal(t, 404, rec.Code)
	require.Equal(t, "Not Found", rec.Body.String())

	rec = get("/broken")
	require.Equal(t, 500, rec.Code)
	require.Equal(t, "disk on fire", rec.Body.String())

	rec = get("/json")
	require.Equal(t, 200, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, `{"eggs":3}`, rec.Body.String())
}

func TestDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			w.Write([]byte("hello"))
			return
		}
		SendError(w, strings.Repeat("x", 150), http.StatusBadGateway)
	}))
	defer srv.Close()

	req, _ := http.NewRequest("GET", srv.URL+"/ok", nil)
	resp, err := Do(nil, req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, "hello", string(body))

	req, _ = http.NewRequest("GET", srv.URL+"/fail", nil)
	_, err = Do(srv.Client(), req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "502 Bad Gateway")
	require.True(t, strings.HasSuffix(err.Error(), "..."))
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}), 2, time.Minute)
	codes := []int{}
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{200, 200, 429}, codes)
}
