package fetch

import (
	"testing"

	"github.com/radawson/apt-mirror/config"
)

func TestNewClientNoProxy(t *testing.T) {
	cfg := config.Default()
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 (unbounded per-artifact duration)", client.Timeout)
	}
}

func TestNewClientWithProxy(t *testing.T) {
	cfg := config.Default()
	cfg.UseProxy = true
	cfg.HTTPProxy = "http://proxy.example:3128"
	cfg.ProxyUser = "alice"
	cfg.ProxyPassword = "secret"

	if _, err := NewClient(cfg); err != nil {
		t.Fatalf("NewClient: %v", err)
	}
}

func TestNewClientBadProxyURL(t *testing.T) {
	cfg := config.Default()
	cfg.UseProxy = true
	cfg.HTTPProxy = "://not-a-url"

	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected error for malformed proxy URL")
	}
}

func TestNewRequestHeaders(t *testing.T) {
	h := newRequestHeaders()
	if h.Get("User-Agent") != userAgent {
		t.Errorf("User-Agent = %q", h.Get("User-Agent"))
	}
}
