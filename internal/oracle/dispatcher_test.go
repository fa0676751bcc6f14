package oracle

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
	"github.com/Theseuschain/the-prediction-market/internal/identity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchDeliversSignedRequest(t *testing.T) {
	auth := &identity.WebhookAuth{Secret: "shared"}

	var received domain.ResolutionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		ts := r.Header.Get("X-Settlement-Timestamp")
		sig := r.Header.Get("X-Settlement-Signature")
		if !auth.Verify(http.MethodPost, "/resolve", string(body), ts, sig) {
			t.Error("webhook signature did not verify")
		}
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL+"/resolve", auth, discardLogger())
	req := domain.ResolutionRequest{
		RequestID: "req-1",
		MarketID:  7,
		Question:  "Which outcome?",
		Options:   []string{"Yes", "No"},
		Target:    "0x0000000000000000000000000000000000000011",
	}
	if err := d.Dispatch(context.Background(), req); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if received.RequestID != "req-1" || received.MarketID != 7 {
		t.Errorf("received %+v", received)
	}
}

func TestDispatchReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such market", http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL+"/resolve", &identity.WebhookAuth{Secret: "s"}, discardLogger())
	if err := d.Dispatch(context.Background(), domain.ResolutionRequest{RequestID: "req-2"}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestDispatchUnreachableEndpoint(t *testing.T) {
	d := NewDispatcher("http://127.0.0.1:1/resolve", &identity.WebhookAuth{Secret: "s"}, discardLogger())
	if err := d.Dispatch(context.Background(), domain.ResolutionRequest{RequestID: "req-3"}); err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}
