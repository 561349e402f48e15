package waf

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Fingerprint returns a deterministic hash of a request's method, path, query
// parameters and body, used as the decision cache key. Headers are excluded:
// two requests differing only in headers share a verdict.
func Fingerprint(req HTTPRequest) string {
	h := sha256.New()
	io.WriteString(h, req.Method())
	io.WriteString(h, "|")
	io.WriteString(h, req.Path())
	io.WriteString(h, "|")
	for _, qp := range req.QueryParams() {
		io.WriteString(h, qp.Key)
		io.WriteString(h, "=")
		io.WriteString(h, qp.Value)
		io.WriteString(h, "&")
	}
	io.WriteString(h, "|")
	io.WriteString(h, req.Body())
	return hex.EncodeToString(h.Sum(nil))
}
