package upstream

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hung319/magicstudio2api/internal/config"
)

func testConfig(endpoint string) config.UpstreamConfig {
	return config.UpstreamConfig{
		Endpoint:  endpoint,
		ClientID:  "client-123",
		Origin:    "https://example.test",
		Referer:   "https://example.test/generator/",
		UserAgent: "test-agent",
		Timeout:   5 * time.Second,
	}
}

func TestGenerateBuildsMultipartForm(t *testing.T) {
	var (
		fields  map[string]string
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		fields = make(map[string]string)
		for name, values := range r.MultipartForm.Value {
			fields[name] = values[0]
		}
		headers = r.Header.Clone()
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL))
	before := time.Now().UnixMilli()
	b64, err := client.Generate(context.Background(), "a red fox")
	after := time.Now().UnixMilli()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if want := base64.StdEncoding.EncodeToString([]byte("PNGDATA")); b64 != want {
		t.Fatalf("unexpected payload: got %q want %q", b64, want)
	}

	if fields["prompt"] != "a red fox" {
		t.Fatalf("unexpected prompt field: %q", fields["prompt"])
	}
	if fields["output_format"] != "bytes" {
		t.Fatalf("unexpected output_format: %q", fields["output_format"])
	}
	if fields["user_profile_id"] != "null" {
		t.Fatalf("unexpected user_profile_id: %q", fields["user_profile_id"])
	}
	if fields["user_is_subscribed"] != "false" {
		t.Fatalf("unexpected user_is_subscribed: %q", fields["user_is_subscribed"])
	}
	if fields["client_id"] != "client-123" {
		t.Fatalf("unexpected client_id: %q", fields["client_id"])
	}

	// Anonymous id and timestamp are non-deterministic; assert structure only.
	if _, err := uuid.Parse(fields["anonymous_user_id"]); err != nil {
		t.Fatalf("anonymous_user_id is not a UUID: %q", fields["anonymous_user_id"])
	}
	ts, err := strconv.ParseInt(fields["request_timestamp"], 10, 64)
	if err != nil {
		t.Fatalf("request_timestamp is not numeric: %q", fields["request_timestamp"])
	}
	if ts < before || ts > after {
		t.Fatalf("request_timestamp %d outside [%d, %d]", ts, before, after)
	}

	if got := headers.Get("Accept"); got != "application/json, text/plain, */*" {
		t.Fatalf("unexpected Accept header: %q", got)
	}
	if got := headers.Get("Origin"); got != "https://example.test" {
		t.Fatalf("unexpected Origin header: %q", got)
	}
	if got := headers.Get("Referer"); got != "https://example.test/generator/" {
		t.Fatalf("unexpected Referer header: %q", got)
	}
	if got := headers.Get("User-Agent"); got != "test-agent" {
		t.Fatalf("unexpected User-Agent header: %q", got)
	}
}

func TestGenerateFreshAnonymousIDPerCall(t *testing.T) {
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		ids = append(ids, r.FormValue("anonymous_user_id"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89})
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL))
	for i := 0; i < 2; i++ {
		if _, err := client.Generate(context.Background(), "p"); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}

	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("expected distinct anonymous ids, got %v", ids)
	}
}

func TestGenerateNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL))
	_, err := client.Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("error should embed status: %v", err)
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("error should embed body snippet: %v", err)
	}
}

func TestGenerateNonImageContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detail":"quota exceeded"}`))
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL))
	_, err := client.Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error for non-image response")
	}
	if !strings.Contains(err.Error(), "application/json") {
		t.Fatalf("error should embed content type: %v", err)
	}
}

func TestGenerateTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := New(testConfig(srv.URL))
	if _, err := client.Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected transport error for closed server")
	}
}
