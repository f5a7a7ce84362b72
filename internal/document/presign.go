package document

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Storage is the minimum contract the core needs from a file store:
// expiring upload and download URLs plus deletion, keyed by object key.
type Storage interface {
	GenerateUploadURL(objectKey string, expiry time.Duration) (string, error)
	GetDownloadURL(objectKey string, expiry time.Duration) (string, error)
	DeleteObject(objectKey string) error
}

// HMACPresigner issues HMAC-signed expiring URLs against a storage
// gateway that verifies the same secret. It stands in for a cloud SDK;
// the service only ever sees the Storage contract.
type HMACPresigner struct {
	BaseURL string
	secret  []byte
	now     func() time.Time
}

// PresignerFromEnv builds the presigner from STORAGE_BASE_URL and
// STORAGE_SECRET.
func PresignerFromEnv() *HMACPresigner {
	base := os.Getenv("STORAGE_BASE_URL")
	if base == "" {
		base = "http://localhost:9000/hestia-documents"
	}
	return NewHMACPresigner(base, []byte(os.Getenv("STORAGE_SECRET")))
}

func NewHMACPresigner(baseURL string, secret []byte) *HMACPresigner {
	return &HMACPresigner{BaseURL: baseURL, secret: secret, now: time.Now}
}

func (p *HMACPresigner) sign(method, objectKey string, expires int64) string {
	mac := hmac.New(sha256.New, p.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", method, objectKey, expires)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (p *HMACPresigner) presign(method, objectKey string, expiry time.Duration) (string, error) {
	exp := p.now().Add(expiry).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("method", method)
	q.Set("signature", p.sign(method, objectKey, exp))
	return p.BaseURL + "/" + url.PathEscape(objectKey) + "?" + q.Encode(), nil
}

func (p *HMACPresigner) GenerateUploadURL(objectKey string, expiry time.Duration) (string, error) {
	return p.presign("PUT", objectKey, expiry)
}

func (p *HMACPresigner) GetDownloadURL(objectKey string, expiry time.Duration) (string, error) {
	return p.presign("GET", objectKey, expiry)
}

// DeleteObject is a no-op for the presigner: the gateway garbage-collects
// unreferenced objects. Metadata deletion is the authoritative act.
func (p *HMACPresigner) DeleteObject(objectKey string) error { return nil }

// Verify checks a signature produced by sign, for gateway-side use and
// tests.
func (p *HMACPresigner) Verify(method, objectKey string, expires int64, signature string) bool {
	if p.now().Unix() > expires {
		return false
	}
	expected := p.sign(method, objectKey, expires)
	return hmac.Equal([]byte(expected), []byte(signature))
}
