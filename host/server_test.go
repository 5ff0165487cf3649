package host

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pthm-cable/natsel/config"
	"github.com/pthm-cable/natsel/protocol"
)

func testServer(inbox chan protocol.Inbound) (*Server, *View) {
	v := testView()
	startGeneration(v)
	srv := NewServer(config.HostConfig{Address: "127.0.0.1:0"}, v, inbox,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return t0 }),
	)
	return srv, v
}

func TestServer_Creatures(t *testing.T) {
	srv, _ := testServer(make(chan protocol.Inbound, 1))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/creatures", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var s State
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Generation != 2 || len(s.Creatures) != 2 || len(s.Foods) != 2 || s.World.Width != 30 {
		t.Errorf("state = %+v", s)
	}
}

func TestServer_KillForwardsToInbox(t *testing.T) {
	inbox := make(chan protocol.Inbound, 1)
	srv, _ := testServer(inbox)

	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"id": "creature2_1"}`)
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/kill", body))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	in := <-inbox
	msg, err := protocol.Decode(in.Payload)
	if err != nil {
		t.Fatalf("decode forwarded payload: %v", err)
	}
	if k, ok := msg.(protocol.Kill); !ok || k.TargetID != "creature2_1" || in.From != "host" {
		t.Errorf("forwarded %+v from %q", msg, in.From)
	}
}

func TestServer_KillRejects(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "{", http.StatusBadRequest},
		{"missing id", http.MethodPost, `{"id": "  "}`, http.StatusBadRequest},
		{"too large", http.MethodPost, `{"id": "` + string(bytes.Repeat([]byte("x"), maxBodyBytes)) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inbox := make(chan protocol.Inbound, 1)
			srv, _ := testServer(inbox)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, "/kill", bytes.NewBufferString(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if len(inbox) != 0 {
				t.Error("rejected request reached the inbox")
			}
		})
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv, _ := testServer(make(chan protocol.Inbound, 1))
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.StatusCode != http.StatusOK || h.Status != string(StatusReady) || h.Generation != 2 {
		t.Errorf("health = %d %+v", resp.StatusCode, h)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if srv.Addr() != "" || srv.Status() != StatusDraining {
		t.Errorf("after shutdown addr=%q status=%s", srv.Addr(), srv.Status())
	}
}

func TestServer_KillBusyInbox(t *testing.T) {
	srv, _ := testServer(make(chan protocol.Inbound))
	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"id": "creature2_1"}`)
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/kill", body))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestSendKill_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SendKill(ctx, make(chan protocol.Inbound), "creature2_0"); err != context.Canceled {
		t.Errorf("SendKill = %v, want context.Canceled", err)
	}
}
