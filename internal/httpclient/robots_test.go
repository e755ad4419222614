package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDiskRobotsAllowsWhenNoDisallowMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()

	robots := NewDiskRobots(nil)
	allowed, fetchFailed := robots.Allowed(context.Background(), srv.URL+"/public/page")
	if fetchFailed {
		t.Fatal("expected fetch to succeed")
	}
	if !allowed {
		t.Fatal("expected /public/page to be allowed")
	}
}

func TestDiskRobotsDisallowsMatchedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()

	robots := NewDiskRobots(nil)
	allowed, fetchFailed := robots.Allowed(context.Background(), srv.URL+"/private/page")
	if fetchFailed {
		t.Fatal("expected fetch to succeed")
	}
	if allowed {
		t.Fatal("expected /private/page to be disallowed")
	}
}

func TestDiskRobotsFailsOpenOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	robots := NewDiskRobots(nil)
	allowed, fetchFailed := robots.Allowed(context.Background(), srv.URL+"/anything")
	if fetchFailed {
		t.Fatal("a missing robots.txt should not be reported as a fetch failure")
	}
	if !allowed {
		t.Fatal("expected allow-all when robots.txt is missing")
	}
}

func TestDiskRobotsFailsOpenWhenUnreachable(t *testing.T) {
	robots := NewDiskRobots(nil)
	allowed, fetchFailed := robots.Allowed(context.Background(), "https://127.0.0.1:1/page")
	if !fetchFailed {
		t.Fatal("expected a fetch failure for an unreachable host")
	}
	if !allowed {
		t.Fatal("expected fail-open (allowed=true) when robots.txt is unreachable")
	}
}

func TestDiskRobotsInvokesOnDelayOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nCrawl-delay: 5\n"))
	}))
	defer srv.Close()

	var calls int
	var gotDelay time.Duration
	robots := NewDiskRobots(func(host string, delay time.Duration) {
		calls++
		gotDelay = delay
	})

	robots.Allowed(context.Background(), srv.URL+"/a")
	robots.Allowed(context.Background(), srv.URL+"/b")

	if calls != 1 {
		t.Fatalf("expected onDelay invoked exactly once, got %d", calls)
	}
	if gotDelay != 5*time.Second {
		t.Fatalf("expected 5s crawl delay, got %v", gotDelay)
	}
}
