// Package artifact implements the Artifact Storage object store (§6.5):
// recordings and screenshots keyed by a fixed naming convention, retrieved
// via short-lived signed URLs. No pack example wires a cloud object-storage
// SDK to a concrete call site (DESIGN.md), so this is backed by the local
// filesystem with an HMAC-signed URL scheme standing in for a cloud
// provider's presigned URL.
package artifact

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store implements putObject/getSignedUrl (§6.5) against a root directory.
type Store struct {
	root      string
	secret    []byte
	publicURL string
}

func NewStore(root, publicURL, secret string) *Store {
	return &Store{root: root, secret: []byte(secret), publicURL: strings.TrimRight(publicURL, "/")}
}

// RecordingKey mints a recording object key (§6.5 "recordings/<uuid>-<platform>-recording.<ext>").
func RecordingKey(platform, ext string) string {
	return fmt.Sprintf("recordings/%s-%s-recording.%s", uuid.New().String(), platform, ext)
}

// ScreenshotKey mints a screenshot object key (§6.5
// "bots/<bot-id>/screenshots/<uuid>-<type>-<timestampMs>.png").
func ScreenshotKey(botID int64, screenshotType string, timestampMs int64) string {
	return fmt.Sprintf("bots/%d/screenshots/%s-%s-%d.png", botID, uuid.New().String(), screenshotType, timestampMs)
}

// PutObject writes data under key, recording contentType alongside it.
func (s *Store) PutObject(key string, data []byte, contentType string) error {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if err := os.WriteFile(path+".contenttype", []byte(contentType), 0o644); err != nil {
		return fmt.Errorf("write object content type: %w", err)
	}
	return nil
}

// GetObject reads back a previously stored object and its content type.
func (s *Store) GetObject(key string) ([]byte, string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read object: %w", err)
	}
	contentType, err := os.ReadFile(path + ".contenttype")
	if err != nil {
		contentType = []byte("application/octet-stream")
	}
	return data, string(contentType), nil
}

// GetSignedUrl returns a time-limited URL for key, valid for ttl. The
// signature is an HMAC-SHA256 over key and expiry, matching the spirit of
// a cloud provider's presigned URL without depending on one.
func (s *Store) GetSignedUrl(key string, ttl time.Duration) (string, error) {
	expiry := time.Now().Add(ttl).Unix()
	sig := s.sign(key, expiry)
	return fmt.Sprintf("%s/artifacts/%s?expires=%d&sig=%s", s.publicURL, key, expiry, sig), nil
}

// VerifySignedUrl checks a key/expires/sig triple produced by GetSignedUrl.
func (s *Store) VerifySignedUrl(key, expires, sig string) (bool, error) {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse expiry: %w", err)
	}
	if time.Now().Unix() > exp {
		return false, nil
	}
	want := s.sign(key, exp)
	return hmac.Equal([]byte(want), []byte(sig)), nil
}

func (s *Store) sign(key string, expiry int64) string {
	mac := hmac.New(sha256.New, s.secret)
	io.WriteString(mac, key)
	io.WriteString(mac, ":")
	io.WriteString(mac, strconv.FormatInt(expiry, 10))
	sum := mac.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum)
}
