package threatintel

import (
	"net"
	"regexp"
	"strings"

	"rampart/waf"
)

var (
	ipPattern     = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	domainPattern = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}\b`)
	urlPattern    = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	hashPattern   = regexp.MustCompile(`\b[a-fA-F0-9]{32}\b|\b[a-fA-F0-9]{40}\b|\b[a-fA-F0-9]{64}\b`)
)

// IOCs are the indicators of compromise extracted from one request.
type IOCs struct {
	IPs     []string
	Domains []string
	URLs    []string
	Hashes  []string
}

// ExtractIOCs pulls indicator candidates out of the request's path, query,
// headers and body. The caller's own IP is skipped; reputation of the client
// is the IP list's and feeds' job, not an in-request indicator.
func ExtractIOCs(req waf.HTTPRequest) IOCs {
	var b strings.Builder
	b.WriteString(req.Path())
	b.WriteString(" ")
	for _, qp := range req.QueryParams() {
		b.WriteString(qp.Key)
		b.WriteString("=")
		b.WriteString(qp.Value)
		b.WriteString(" ")
	}
	for _, h := range req.Headers() {
		b.WriteString(h.Value())
		b.WriteString(" ")
	}
	b.WriteString(req.Body())
	text := b.String()

	var iocs IOCs
	seen := map[string]bool{}

	for _, m := range ipPattern.FindAllString(text, -1) {
		if m == req.RemoteAddr() || seen["ip:"+m] {
			continue
		}
		if net.ParseIP(m) == nil {
			continue
		}
		seen["ip:"+m] = true
		iocs.IPs = append(iocs.IPs, m)
	}
	for _, m := range domainPattern.FindAllString(text, -1) {
		if seen["domain:"+m] || ipPattern.MatchString(m) {
			continue
		}
		seen["domain:"+m] = true
		iocs.Domains = append(iocs.Domains, m)
	}
	for _, m := range urlPattern.FindAllString(text, -1) {
		if seen["url:"+m] {
			continue
		}
		seen["url:"+m] = true
		iocs.URLs = append(iocs.URLs, m)
	}
	for _, m := range hashPattern.FindAllString(text, -1) {
		if seen["hash:"+m] {
			continue
		}
		seen["hash:"+m] = true
		iocs.Hashes = append(iocs.Hashes, m)
	}
	return iocs
}

// IsPrivateIP reports whether the address is private or loopback. Private
// addresses short-circuit as non-malicious without a feed lookup.
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsUnspecified()
}
