package attribution

import (
	"net/url"
	"strings"
)

// Sentinel business domains used when no domain can be derived from a click.
const (
	DomainUnknown      = "unknown"
	DomainInvalidURL   = "invalid_url"
	DomainDecodeFailed = "decode_failed"
)

// maxDecodePasses bounds how many times a target URL is percent-decoded.
const maxDecodePasses = 3

// DecodeTargetURL undoes repeated percent-encoding of a redirect target and
// returns it as an absolute http(s) URL. It reports false when the result
// cannot be turned into one, even after assuming an https scheme.
func DecodeTargetURL(raw string) (string, bool) {
	decoded := strings.TrimSpace(raw)
	if decoded == "" {
		return "", false
	}

	for i := 0; i < maxDecodePasses; i++ {
		if !strings.Contains(decoded, "%") {
			break
		}
		next, err := url.PathUnescape(decoded)
		if err != nil {
			decoded = unescapeHexPairs(decoded)
			break
		}
		if next == decoded {
			break
		}
		decoded = next
	}

	if u, ok := absoluteURL(decoded); ok {
		return u, true
	}
	if !strings.Contains(decoded, "://") {
		if u, ok := absoluteURL("https://" + decoded); ok {
			return u, true
		}
	}
	return "", false
}

// ExtractDomain returns the normalized hostname of a decoded target, or a
// sentinel when there is nothing usable.
func ExtractDomain(target string, decoded bool) string {
	if target == "" {
		if decoded {
			return DomainUnknown
		}
		return DomainDecodeFailed
	}
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return DomainInvalidURL
	}
	return u.Hostname()
}

// IsSentinelDomain reports whether domain is one of the fallback markers.
func IsSentinelDomain(domain string) bool {
	switch domain {
	case "", DomainUnknown, DomainInvalidURL, DomainDecodeFailed:
		return true
	}
	return false
}

// absoluteURL accepts any http(s) URL with a usable host. A '%' that does
// not start a valid escape is re-encoded as %25 so it survives parsing.
func absoluteURL(s string) (string, bool) {
	if strings.ContainsAny(s, " \t\r\n") {
		return "", false
	}
	s = escapeStrayPercents(s)
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := u.Hostname()
	if host == "" || strings.ContainsAny(host, "%") || strings.HasPrefix(host, ".") || strings.Contains(host, "..") {
		return "", false
	}
	return s, true
}

func escapeStrayPercents(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && !(i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// unescapeHexPairs replaces every well-formed %XX sequence and leaves
// malformed escapes untouched.
func unescapeHexPairs(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
