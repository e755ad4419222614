package httpclient

import "testing"

func TestDiskCacheMissReturnsFalse(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatalf("new disk cache: %v", err)
	}
	if _, _, _, ok := cache.Get("https://example.de/a"); ok {
		t.Fatal("expected a miss on an empty cache")
	}
}

func TestDiskCachePutThenGetRoundTrips(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatalf("new disk cache: %v", err)
	}
	cache.Put("https://example.de/a", []byte("hello"), "etag-1", "Mon, 01 Jan 2024 00:00:00 GMT")

	body, etag, lastMod, ok := cache.Get("https://example.de/a")
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if string(body) != "hello" {
		t.Fatalf("expected body 'hello', got %q", body)
	}
	if etag != "etag-1" {
		t.Fatalf("expected etag-1, got %q", etag)
	}
	if lastMod != "Mon, 01 Jan 2024 00:00:00 GMT" {
		t.Fatalf("unexpected last-modified: %q", lastMod)
	}
}

func TestDiskCachePutOverwritesPreviousEntry(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatalf("new disk cache: %v", err)
	}
	cache.Put("https://example.de/a", []byte("v1"), "etag-1", "")
	cache.Put("https://example.de/a", []byte("v2"), "etag-2", "")

	body, etag, _, ok := cache.Get("https://example.de/a")
	if !ok {
		t.Fatal("expected a hit")
	}
	if string(body) != "v2" || etag != "etag-2" {
		t.Fatalf("expected second Put to win, got body %q etag %q", body, etag)
	}
}

func TestDiskCacheDistinctURLsDoNotCollide(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatalf("new disk cache: %v", err)
	}
	cache.Put("https://example.de/a", []byte("a-body"), "", "")
	cache.Put("https://example.de/b", []byte("b-body"), "", "")

	bodyA, _, _, _ := cache.Get("https://example.de/a")
	bodyB, _, _, _ := cache.Get("https://example.de/b")
	if string(bodyA) != "a-body" || string(bodyB) != "b-body" {
		t.Fatalf("expected distinct entries, got %q and %q", bodyA, bodyB)
	}
}
