package artifact

import (
	"strings"
	"testing"
	"time"
)

func TestPutGetObjectRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir(), "https://artifacts.example.com", "test-secret")

	key := RecordingKey("meet", "webm")
	if !strings.HasPrefix(key, "recordings/") || !strings.HasSuffix(key, "-meet-recording.webm") {
		t.Fatalf("unexpected recording key: %q", key)
	}

	if err := s.PutObject(key, []byte("hello"), "video/webm"); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	data, contentType, err := s.GetObject(key)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q, want %q", data, "hello")
	}
	if contentType != "video/webm" {
		t.Fatalf("contentType = %q, want %q", contentType, "video/webm")
	}
}

func TestSignedUrlVerification(t *testing.T) {
	s := NewStore(t.TempDir(), "https://artifacts.example.com", "test-secret")
	key := ScreenshotKey(7, "fatal", 1000)

	url, err := s.GetSignedUrl(key, time.Minute)
	if err != nil {
		t.Fatalf("GetSignedUrl: %v", err)
	}
	if !strings.Contains(url, key) {
		t.Fatalf("url %q missing key %q", url, key)
	}

	parts := strings.SplitN(url, "?", 2)
	query := parts[1]
	var expires, sig string
	for _, kv := range strings.Split(query, "&") {
		k, v, _ := strings.Cut(kv, "=")
		switch k {
		case "expires":
			expires = v
		case "sig":
			sig = v
		}
	}

	ok, err := s.VerifySignedUrl(key, expires, sig)
	if err != nil {
		t.Fatalf("VerifySignedUrl: %v", err)
	}
	if !ok {
		t.Fatal("expected valid signature")
	}

	ok, err = s.VerifySignedUrl(key, expires, "tampered")
	if err != nil {
		t.Fatalf("VerifySignedUrl: %v", err)
	}
	if ok {
		t.Fatal("expected invalid signature to fail verification")
	}
}
