package attribution

import (
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clickTime = time.UnixMilli(1735732800000).UTC()

func newTestComposer(errorPage string) *Composer {
	return NewComposer(errorPage, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCompose_Target(t *testing.T) {
	c := newTestComposer("")

	got := c.Compose("https://shop.example.com/p/1", "shop.example.com", "aff123", "ref_aff123_1735732800000_abc123", clickTime)

	assert.Equal(t, TierTarget, got.Tier)
	assert.Equal(t,
		"https://shop.example.com/p/1?utm_source=ipick.io&utm_medium=referral&utm_campaign=business_referral"+
			"&aff_id=aff123&ref_token=ref_aff123_1735732800000_abc123&timestamp=1735732800000",
		got.URL)
	assert.Empty(t, got.Skipped)
}

func TestCompose_KeepsExistingParameters(t *testing.T) {
	c := newTestComposer("")

	got := c.Compose("https://shop.example.com/p?utm_source=foo&color=red#reviews", "shop.example.com", "aff", "tok", clickTime)

	u, err := url.Parse(got.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "foo", q.Get("utm_source"))
	assert.Equal(t, []string{"foo"}, q["utm_source"])
	assert.Equal(t, "red", q.Get("color"))
	assert.Equal(t, "referral", q.Get("utm_medium"))
	assert.Equal(t, "aff", q.Get("aff_id"))
	assert.Equal(t, "reviews", u.Fragment)
	assert.Equal(t, []string{"utm_source"}, got.Skipped)
}

func TestCompose_BusinessDomainFallback(t *testing.T) {
	c := newTestComposer("")

	got := c.Compose("", "shop.example.com", "aff", "tok", clickTime)
	assert.Equal(t, TierBusinessDomain, got.Tier)

	u, err := url.Parse(got.URL)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "shop.example.com", u.Host)
	assert.Equal(t, "ipick.io", u.Query().Get("utm_source"))

	got = c.Compose("", "http://legacy.example.com", "aff", "tok", clickTime)
	assert.Equal(t, TierBusinessDomain, got.Tier)
	assert.Contains(t, got.URL, "http://legacy.example.com?")
}

func TestCompose_ErrorPage(t *testing.T) {
	c := newTestComposer("")

	for _, domain := range []string{DomainUnknown, DomainInvalidURL, DomainDecodeFailed, "", "bad domain with spaces"} {
		got := c.Compose("not a url", domain, "aff", "tok", clickTime)
		assert.Equal(t, TierErrorPage, got.Tier, domain)

		u, err := url.Parse(got.URL)
		require.NoError(t, err)
		assert.Equal(t, "ipick.io", u.Host)
		assert.Equal(t, "/referral-error", u.Path)
		assert.Equal(t, "tok", u.Query().Get("ref_token"))
	}
}

func TestCompose_ConfiguredErrorPage(t *testing.T) {
	c := newTestComposer("https://errors.example.net/oops?lang=en")

	got := c.Compose("", DomainUnknown, "aff", "tok", clickTime)
	assert.Equal(t, TierErrorPage, got.Tier)
	assert.Contains(t, got.URL, "https://errors.example.net/oops?lang=en&utm_source=ipick.io")

	// The configured page is not mutated between calls.
	again := c.Compose("", DomainUnknown, "aff2", "tok2", clickTime)
	assert.NotContains(t, again.URL, "aff_id=aff&")
	assert.Contains(t, again.URL, "aff_id=aff2")
}

func TestNewComposer_InvalidErrorPageFallsBack(t *testing.T) {
	c := newTestComposer("not-a-url")
	got := c.Compose("", DomainUnknown, "aff", "tok", clickTime)
	assert.Contains(t, got.URL, DefaultErrorPageURL+"?")
}

func TestCompose_AlwaysAbsolute(t *testing.T) {
	c := newTestComposer("")
	targets := []string{"", "https://ok.example.com", "ftp://x", "%%%", "javascript:alert(1)"}
	domains := []string{"", DomainUnknown, "shop.example.com", "::::"}

	for _, target := range targets {
		for _, domain := range domains {
			got := c.Compose(target, domain, "a&b=c", "t", clickTime)
			u, err := url.Parse(got.URL)
			require.NoError(t, err, "%q %q", target, domain)
			assert.True(t, u.IsAbs(), got.URL)
			assert.NotEmpty(t, u.Host, got.URL)
			assert.Equal(t, "a&b=c", u.Query().Get("aff_id"))
		}
	}
}
