package classifier

import (
	"strings"

	"rampart/waf"
)

// FormatRequest renders a request as the canonical HTTP text block the
// classifier was trained on: request line with query string, headers, a blank
// line, then the body.
func FormatRequest(req waf.HTTPRequest) string {
	var b strings.Builder

	b.WriteString(req.Method())
	b.WriteString(" ")
	b.WriteString(req.Path())
	if qps := req.QueryParams(); len(qps) > 0 {
		b.WriteString("?")
		for i, qp := range qps {
			if i > 0 {
				b.WriteString("&")
			}
			b.WriteString(qp.Key)
			b.WriteString("=")
			b.WriteString(qp.Value)
		}
	}
	b.WriteString(" HTTP/1.1\r\n")

	for _, h := range req.Headers() {
		b.WriteString(h.Key())
		b.WriteString(": ")
		b.WriteString(h.Value())
		b.WriteString("\r\n")
	}

	if body := req.Body(); body != "" {
		b.WriteString("\r\n")
		b.WriteString(body)
	}

	return b.String()
}
