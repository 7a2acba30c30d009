package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"giveawaybot/pkg/logx"
)

func newService(t *testing.T, cfg Config) *Service {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "giveaway_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()
	stats := func(context.Context) Stats { return Stats{OpenGiveaways: 2, PendingTimers: 1} }
	s := New(cfg, stats, reg, time.Unix(1000, 0), logx.Nop())
	s.now = func() time.Time { return time.Unix(1090, 0) }
	return s
}

func get(t *testing.T, h http.Handler, target, auth string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, rec.Body.String()
}

func TestStatusDocument(t *testing.T) {
	t.Parallel()
	s := newService(t, Config{})
	code, body := get(t, s.Handler(""), "/", "")
	if code != http.StatusOK {
		t.Fatalf("GET / = %d", code)
	}
	var doc statusDoc
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	if doc.Status != "online" || doc.UptimeSeconds != 90 || doc.OpenGiveaways != 2 || doc.PendingTimers != 1 {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Timestamp != "1970-01-01T00:18:10Z" {
		t.Fatalf("timestamp = %q", doc.Timestamp)
	}

	if code, body := get(t, s.Handler(""), "/metrics", ""); code != http.StatusOK || !strings.Contains(body, "giveaway_test_total 1") {
		t.Fatalf("GET /metrics = %d %q", code, body)
	}
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	h := newService(t, Config{}).Handler("s3cret")

	tests := []struct {
		target string
		auth   string
		want   int
	}{
		{"/health", "", http.StatusOK},
		{"/", "", http.StatusUnauthorized},
		{"/", "wrong", http.StatusUnauthorized},
		{"/", "s3cret", http.StatusOK},
		{"/?token=s3cret", "", http.StatusOK},
		{"/metrics", "", http.StatusUnauthorized},
		{"/metrics", "s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		if code, _ := get(t, h, tt.target, tt.auth); code != tt.want {
			t.Fatalf("GET %s auth=%q = %d, want %d", tt.target, tt.auth, code, tt.want)
		}
	}
}

func TestCheckBind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr     string
		token    string
		insecure bool
		ok       bool
	}{
		{"127.0.0.1:8080", "", false, true},
		{"localhost:8080", "", false, true},
		{"[::1]:8080", "", false, true},
		{"0.0.0.0:8080", "", false, false},
		{":8080", "", false, false},
		{"0.0.0.0:8080", "t", false, true},
		{"10.0.0.5:8080", "", true, true},
	}
	for _, tt := range tests {
		if err := checkBind(tt.addr, tt.token, tt.insecure); (err == nil) != tt.ok {
			t.Fatalf("checkBind(%q, %q, %v) = %v", tt.addr, tt.token, tt.insecure, err)
		}
	}
}

func TestServeAndReconfigure(t *testing.T) {
	t.Parallel()
	s := newService(t, Config{Enabled: true, Addr: "127.0.0.1:0"})
	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	var addr string
	deadline := time.Now().Add(3 * time.Second)
	for addr == "" && time.Now().Before(deadline) {
		addr = s.Addr()
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatalf("server did not start")
	}
	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(b) != "ok" {
		t.Fatalf("health body = %q", b)
	}

	s.Reconfigure(ctx, Config{Enabled: false})
	if s.Supervisor() != nil || s.Addr() != "" {
		t.Fatalf("disable should stop the server")
	}
}
