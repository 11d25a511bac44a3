package validator

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MaxAffiliateIDLength bounds affiliate identifiers taken from the redirect path.
const MaxAffiliateIDLength = 100

// MaxLimit caps how many rows a single analytics request may load.
const MaxLimit = 250

// ValidateURL checks if a URL is an absolute http(s) URL
func ValidateURL(urlStr string) error {
	urlStr = strings.TrimSpace(urlStr)

	if urlStr == "" {
		return ErrEmptyURL
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return ErrInvalidURL
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return ErrInvalidScheme
	}

	if parsedURL.Host == "" {
		return ErrInvalidHost
	}

	return nil
}

// ValidateAffiliateID checks an affiliate identifier: non-empty, at most
// MaxAffiliateIDLength characters, letters, digits, '-' and '_' only.
func ValidateAffiliateID(id string) error {
	if id == "" {
		return ErrEmptyAffiliateID
	}
	if len(id) > MaxAffiliateIDLength {
		return ErrAffiliateIDTooLong
	}

	for _, char := range id {
		if !isAlphanumeric(char) && char != '-' && char != '_' {
			return ErrInvalidAffiliateID
		}
	}

	return nil
}

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (UTC midnight).
// An empty string yields nil.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return &t, nil
	}

	return nil, ErrInvalidDate
}

// ParseLimit parses a row limit, applying def when empty and clamping to MaxLimit.
func ParseLimit(value string, def int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, ErrInvalidLimit
	}
	if n > MaxLimit {
		n = MaxLimit
	}

	return n, nil
}

func isAlphanumeric(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9')
}
