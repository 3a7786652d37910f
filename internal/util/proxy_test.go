package util

import (
	"net/http"
	"net/url"
	"testing"
)

func TestNewProxyFunc_Explicit(t *testing.T) {
	proxy, err := NewProxyFunc("http://proxy.local:3128", "http://secure-proxy.local:3128")
	if err != nil {
		t.Fatalf("NewProxyFunc failed: %v", err)
	}

	tests := []struct {
		target string
		want   string
	}{
		{"https://api.sec-api.io/xbrl-to-json", "http://secure-proxy.local:3128"},
		{"http://example.com/", "http://proxy.local:3128"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			u, _ := url.Parse(tt.target)
			got, err := proxy(&http.Request{URL: u})
			if err != nil {
				t.Fatalf("proxy failed: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("proxy(%s) = %s, want %s", tt.target, got, tt.want)
			}
		})
	}
}

func TestNewProxyFunc_HTTPOnlyCoversHTTPS(t *testing.T) {
	proxy, err := NewProxyFunc("http://proxy.local:3128", "")
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse("https://api.sec-api.io/")
	got, _ := proxy(&http.Request{URL: u})
	if got == nil || got.Host != "proxy.local:3128" {
		t.Errorf("expected http proxy for https target, got %v", got)
	}
}

func TestNewProxyFunc_Invalid(t *testing.T) {
	if _, err := NewProxyFunc("://bad", ""); err == nil {
		t.Error("expected error for invalid proxy URL")
	}
}

func TestNewTransport(t *testing.T) {
	transport, err := NewTransport("", "")
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}
	if transport.Proxy == nil {
		t.Error("expected environment proxy function")
	}
	if transport == http.DefaultTransport {
		t.Error("expected a cloned transport")
	}
}
