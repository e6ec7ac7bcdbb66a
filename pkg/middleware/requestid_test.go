package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arborcms/arbor/pkg/contextkeys"
	"github.com/arborcms/arbor/pkg/observability"
)

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	log := observability.NewLogger(observability.ErrorLevel, io.Discard)

	var ctxID string
	handler := RequestIDMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = contextkeys.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if ctxID == "" {
		t.Fatal("Expected a generated request id in context")
	}
	if got := rec.Header().Get(RequestIDHeader); got != ctxID {
		t.Errorf("Expected response header %q to match context id %q", got, ctxID)
	}
}

func TestRequestIDMiddleware_PreservesInboundID(t *testing.T) {
	log := observability.NewLogger(observability.ErrorLevel, io.Discard)

	var ctxID string
	handler := RequestIDMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = contextkeys.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if ctxID != "upstream-id" {
		t.Errorf("Expected inbound id preserved, got %q", ctxID)
	}
}
