package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"FormRelay/internal/config"
	"FormRelay/internal/relay"
	"FormRelay/internal/services"
	"github.com/rs/zerolog"
)

func testConfig(upstreamURL string) config.Config {
	return config.Config{
		Port:              "0",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       5 * time.Second,
		ShutdownTimeout:   time.Second,
		InstanceName:      "test",
		LogLevel:          "debug",
		UpstreamURL:       upstreamURL,
		UpstreamTimeout:   time.Second,
		UpstreamUserAgent: "relay-test",
		MaxBodyBytes:      256,
		LogRedactFields:   []string{"phone"},
	}
}

func newTestServer(t *testing.T, upstreamURL string) (*Server, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	log := zerolog.New(&logs)
	cfg := testConfig(upstreamURL)
	return New(cfg, services.New(cfg, log), log), &logs
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: unmarshal %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, decoded
}

func TestContactEndpoint_Success(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if ua := r.Header.Get("User-Agent"); ua != "relay-test" {
			t.Errorf("upstream User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"ok"}`)
	}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream.URL)
	w, body := do(t, srv.Handler(), http.MethodPost, ContactPath,
		`{"name":"Ana","email":"a@b.com","phone":"987654321","profession":"Ingeniero Civil"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if body["status"] != "success" || body["message"] != "Formulario enviado con éxito." {
		t.Errorf("body = %v", body)
	}
	if data, _ := body["data"].(map[string]any); data["status"] != "ok" {
		t.Errorf("data = %v", body["data"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID on response")
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
}

func TestContactEndpoint_EmptyObject(t *testing.T) {
	srv, _ := newTestServer(t, "http://127.0.0.1:1/unused")

	w, body := do(t, srv.Handler(), http.MethodPost, ContactPath, `{}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body["error"] != relay.MsgInvalidBody {
		t.Errorf("body = %v", body)
	}
}

func TestContactEndpoint_WrongMethod(t *testing.T) {
	srv, _ := newTestServer(t, "http://127.0.0.1:1/unused")

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, "PURGE", "PROPFIND"} {
		w, body := do(t, srv.Handler(), method, ContactPath, "")
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: status = %d, want 405", method, w.Code)
		}
		if got := w.Header().Get("Allow"); got != http.MethodPost {
			t.Errorf("%s: Allow = %q", method, got)
		}
		if body["error"] != relay.MsgMethodNotAllowed {
			t.Errorf("%s: body = %v", method, body)
		}
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t, "http://127.0.0.1:1/unused")

	for _, method := range []string{http.MethodPost, "PURGE"} {
		w, _ := do(t, srv.Handler(), method, "/api/otro", `{"name":"Ana"}`)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s /api/otro: status = %d, want 404", method, w.Code)
		}
	}
}

func TestContactEndpoint_BodyTooLarge(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream.URL)
	big := `{"message":"` + strings.Repeat("x", 1024) + `"}`
	w, body := do(t, srv.Handler(), http.MethodPost, ContactPath, big)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}
	if body["error"] != relay.MsgBodyTooLarge {
		t.Errorf("body = %v", body)
	}
	if calls.Load() != 0 {
		t.Errorf("upstream calls = %d, want 0", calls.Load())
	}
}

func TestContactEndpoint_Unconfigured(t *testing.T) {
	srv, logs := newTestServer(t, "")

	w, body := do(t, srv.Handler(), http.MethodPost, ContactPath, `{"name":"Ana"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body["message"] != relay.MsgMisconfigured {
		t.Errorf("body = %v", body)
	}
	if !strings.Contains(logs.String(), `"fault":"operator"`) {
		t.Errorf("operator fault not logged:\n%s", logs.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w, body := do(t, srv.Handler(), http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["status"] != "ok" || body["upstream_configured"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestServeAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t, "")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v after shutdown, want nil", err)
	}
}
