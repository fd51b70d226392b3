package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error {
		if rid, _ := c.Get(RequestIDKey).(string); rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caja-01")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	_ = h(c)

	if got := rec.Header().Get(RequestIDHeader); got != "caja-01" {
		t.Errorf("expected caja-01 in response header, got %s", got)
	}
}

func TestLogger_WritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/treatments", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(RequestIDKey, "rid-1")

	h := Logger(logger)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
	})
	if err := h(c); err != nil {
		t.Fatalf("logger should absorb handled errors, got %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"request_id":"rid-1"`, `"status":404`, `"level":"warn"`, `"path":"/api/v1/treatments"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in log output: %s", want, out)
		}
	}
}

func TestRecovery_ConvertsPanic(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("nil map")
	})
	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 HTTPError, got %v", err)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Error("expected panic to be logged")
	}
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2, IdleTTL: time.Minute})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.7:5000"
		rec := httptest.NewRecorder()
		err := h(e.NewContext(req, rec))
		if he, ok := err.(*echo.HTTPError); ok {
			codes = append(codes, he.Code)
			continue
		}
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence: %v", codes)
	}
}

func TestRateLimit_SeparateClients(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	for _, ip := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip
		if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
			t.Errorf("client %s should not be limited: %v", ip, err)
		}
	}
}

func TestRequestTimeout_SetsDeadline(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	h := RequestTimeout(2 * time.Second)(func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); !ok {
			t.Error("expected a deadline on the request context")
		}
		return nil
	})
	_ = h(c)

	h = RequestTimeout(0)(func(c echo.Context) error {
		if c.Request().Context() != context.Background() {
			if _, ok := c.Request().Context().Deadline(); ok {
				t.Error("zero timeout must not set a deadline")
			}
		}
		return nil
	})
	_ = h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
}

func TestRequestTimeout_DeadlineBecomes504(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())

	h := RequestTimeout(time.Millisecond)(func(c echo.Context) error {
		<-c.Request().Context().Done()
		return c.Request().Context().Err()
	})
	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504 HTTPError, got %v", err)
	}
	if !errors.Is(he.Internal, context.DeadlineExceeded) {
		t.Errorf("cause should be kept, got %v", he.Internal)
	}
}

func TestRequestTimeout_PassesOtherErrors(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())

	want := echo.NewHTTPError(http.StatusBadRequest, "amount must be positive")
	err := RequestTimeout(time.Second)(func(echo.Context) error { return want })(c)
	if err != want {
		t.Errorf("expected handler error unchanged, got %v", err)
	}
}

func TestRecovery_LogsRoute(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/treatments", nil), httptest.NewRecorder())
	c.SetPath("/api/v1/treatments")

	_ = Recovery(zerolog.New(&buf))(func(echo.Context) error { panic("boom") })(c)
	if !strings.Contains(buf.String(), `"route":"/api/v1/treatments"`) {
		t.Errorf("expected route in log, got %s", buf.String())
	}
}
