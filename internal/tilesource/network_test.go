package tilesource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"mapmaker/internal/geo"
)

func TestNetwork_FetchAndConditional(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.URL.Path != "/10/545/357.png" {
			http.NotFound(w, r)
			return
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "mapmaker/") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	n, err := NewNetwork(NetworkOptions{Name: "test", URLTemplate: srv.URL + "/{z}/{x}/{y}.png"})
	if err != nil {
		t.Fatal(err)
	}
	tile := geo.Tile{X: 545, Y: 357, Z: 10}

	tok, data, err := n.Fetch(context.Background(), tile, "")
	if err != nil {
		t.Fatal(err)
	}
	if tok != `"v1"` || string(data) != "tile-bytes" {
		t.Fatalf("Fetch = %q, %q", tok, data)
	}

	tok, data, err = n.Fetch(context.Background(), tile, `"v1"`)
	if err != nil {
		t.Fatal(err)
	}
	if tok != `"v1"` || data != nil {
		t.Errorf("conditional Fetch = %q, %v; want token and nil data", tok, data)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestNetwork_StatusNotRetried(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n, err := NewNetwork(NetworkOptions{URLTemplate: srv.URL + "/{z}/{x}/{y}.png", MaxRetries: 5})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = n.Fetch(context.Background(), geo.Tile{X: 1, Y: 1, Z: 1}, "")

	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusForbidden {
		t.Fatalf("error = %v, want StatusError 403", err)
	}
	if !errors.Is(err, ErrTileFetch) {
		t.Errorf("error %v does not wrap ErrTileFetch", err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestNetwork_RetriesConnectionErrors(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) <= 2 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("hijacking not supported")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Error(err)
				return
			}
			conn.Close()
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n, err := NewNetwork(NetworkOptions{URLTemplate: srv.URL + "/{z}/{x}/{y}.png", MaxRetries: 3})
	if err != nil {
		t.Fatal(err)
	}
	_, data, err := n.Fetch(context.Background(), geo.Tile{X: 0, Y: 0, Z: 0}, "")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ok" {
		t.Errorf("data = %q", data)
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}

	// 上限を超えたら ErrTileFetch
	atomic.StoreInt32(&requests, -10)
	n2, _ := NewNetwork(NetworkOptions{URLTemplate: srv.URL + "/{z}/{x}/{y}.png", MaxRetries: 1})
	if _, _, err := n2.Fetch(context.Background(), geo.Tile{}, ""); !errors.Is(err, ErrTileFetch) {
		t.Errorf("error = %v, want ErrTileFetch", err)
	}
}

func TestNetwork_RetryCount(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		want       int32
	}{
		{"default", 0, DefaultMaxRetries + 1},
		{"no retries", NoRetries, 1},
		{"one retry", 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&requests, 1)
				hj, ok := w.(http.Hijacker)
				if !ok {
					t.Error("hijacking not supported")
					return
				}
				conn, _, err := hj.Hijack()
				if err != nil {
					t.Error(err)
					return
				}
				conn.Close()
			}))
			defer srv.Close()

			n, err := NewNetwork(NetworkOptions{URLTemplate: srv.URL + "/{z}/{x}/{y}.png", MaxRetries: tt.maxRetries})
			if err != nil {
				t.Fatal(err)
			}
			if _, _, err := n.Fetch(context.Background(), geo.Tile{}, ""); !errors.Is(err, ErrTileFetch) {
				t.Errorf("error = %v, want ErrTileFetch", err)
			}
			if got := atomic.LoadInt32(&requests); got != tt.want {
				t.Errorf("requests = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNetwork_TemplateSubstitution(t *testing.T) {
	n, err := NewNetwork(NetworkOptions{
		URLTemplate: "https://{s}.tiles.example.com/{z}/{x}/{y}.png?key={api}",
		APIKeys:     map[string]string{"tiles.example.com": "secret"},
	})
	if err != nil {
		t.Fatal(err)
	}
	tile := geo.Tile{X: 3, Y: 5, Z: 7}

	got := []string{n.url(tile), n.url(tile), n.url(tile), n.url(tile)}
	want := []string{
		"https://a.tiles.example.com/7/3/5.png?key=secret",
		"https://b.tiles.example.com/7/3/5.png?key=secret",
		"https://c.tiles.example.com/7/3/5.png?key=secret",
		"https://a.tiles.example.com/7/3/5.png?key=secret",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("url #%d = %q, want %q", i, got[i], want[i])
		}
	}
	if m := n.mask(got[0]); strings.Contains(m, "secret") || !strings.Contains(m, apiKeyMask) {
		t.Errorf("mask = %q", m)
	}
}

func TestNewNetwork_InvalidTemplate(t *testing.T) {
	for _, tpl := range []string{"", "tiles/{z}/{x}/{y}", "https://example.com/{z}/{x}.png"} {
		if _, err := NewNetwork(NetworkOptions{URLTemplate: tpl}); err == nil {
			t.Errorf("NewNetwork(%q) succeeded", tpl)
		}
	}
}

func TestTopLevelDomain(t *testing.T) {
	tests := map[string]string{
		"https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png":    "openstreetmap.org",
		"https://api.mapbox.com:443/styles/{z}/{x}/{y}?k={api}": "mapbox.com",
		"http://localhost:8080/{z}/{x}/{y}.png":                 "localhost",
	}
	for tpl, want := range tests {
		if got := TopLevelDomain(tpl); got != want {
			t.Errorf("TopLevelDomain(%q) = %q, want %q", tpl, got, want)
		}
	}
}
