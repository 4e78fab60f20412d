package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capturevault/internal/domain"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"fragment dropped and query sorted", "https://a.com/p?b=2&a=1#x", "https://a.com/p?a=1&b=2"},
		{"host lower-cased", "https://Example.COM/Path", "https://example.com/Path"},
		{"path case kept", "https://a.com/Docs/API", "https://a.com/Docs/API"},
		{"tracking params removed", "https://a.com/?utm_source=x&id=7&fbclid=abc&gclid=1", "https://a.com/?id=7"},
		{"tracking key casing ignored", "https://a.com/p?UTM_Source=x&Utm_Medium=y&q=go", "https://a.com/p?q=go"},
		{"all tracking removed leaves no query", "https://a.com/p?igsh=1&mc_cid=2&mc_eid=3&utm_term=4&utm_content=5&utm_campaign=6", "https://a.com/p"},
		{"multi-value order kept", "https://a.com/p?tag=b&z=1&tag=a", "https://a.com/p?tag=b&tag=a&z=1"},
		{"empty path becomes slash", "https://a.com", "https://a.com/"},
		{"port kept", "http://LOCALHOST:8080/x", "http://localhost:8080/x"},
		{"empty query marker dropped", "https://a.com/p?", "https://a.com/p"},
		{"semicolon query still cleaned", "https://a.com/p?x=1;y=2&utm_source=news#top", "https://a.com/p?x=1;y=2"},
		{"semicolon query sorted", "https://a.com/p?z=1;2&a=b", "https://a.com/p?a=b&z=1;2"},
		{"bad escape kept verbatim", "https://a.com/p?z=%zz&utm_medium=mail&a=1", "https://a.com/p?a=1&z=%zz"},
		{"escaped tracking key in raw query", "https://a.com/p?q=%zz&utm%5Fsource=x", "https://a.com/p?q=%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://a.com/p?b=2&a=1#x",
		"https://a.com/search?q=hello+world&lang=en",
		"https://a.com/%E2%9C%93/path?x=%7E",
		"HTTPS://Sub.Example.org:443/a/b/?utm_source=n&k=v",
		"https://a.com",
		"https://a.com/p?x=1;y=2&utm_source=news",
		"https://a.com/p?z=%zz&a=1",
	}
	for _, in := range inputs {
		once, err := Canonicalize(in)
		require.NoError(t, err, in)
		twice, err := Canonicalize(once)
		require.NoError(t, err, in)
		assert.Equal(t, once, twice, "canonicalize should be idempotent for %s", in)
	}
}

func TestCanonicalize_ParameterOrderIndependent(t *testing.T) {
	a, err := Canonicalize("https://a.com/p?b=2&a=1#x")
	require.NoError(t, err)
	b, err := Canonicalize("https://a.com/p?a=1&b=2")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonicalize_TrackingOnlyDifferenceSharesKey(t *testing.T) {
	pairs := [][2]string{
		{"https://a.com/p?x=1;y=2&utm_source=news", "https://a.com/p?x=1;y=2"},
		{"https://a.com/p?x=1;y=2#frag", "https://a.com/p?x=1;y=2"},
		{"https://a.com/p?bad=%zz&fbclid=1", "https://a.com/p?bad=%zz"},
	}
	for _, p := range pairs {
		a, err := Canonicalize(p[0])
		require.NoError(t, err)
		b, err := Canonicalize(p[1])
		require.NoError(t, err)
		assert.Equal(t, a, b, p[0])
	}
}

func TestCanonicalize_InvalidReturnsRaw(t *testing.T) {
	inputs := []string{
		"not a url",
		"/relative/path",
		"://missing-scheme",
		"",
	}
	for _, raw := range inputs {
		got, err := Canonicalize(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidURL, raw)
		assert.Equal(t, raw, got, "raw input should come back unchanged")
	}
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("https://Example.com:8443/x"))
	assert.Equal(t, "", Domain("nope"))
}

func TestResolve(t *testing.T) {
	base := "https://a.com/blog/post"
	assert.Equal(t, "https://a.com/img/cover.png", Resolve(base, "/img/cover.png"))
	assert.Equal(t, "https://a.com/blog/thumb.png", Resolve(base, "thumb.png"))
	assert.Equal(t, "https://cdn.b.com/x.png", Resolve(base, "https://cdn.b.com/x.png"))
	assert.Equal(t, "https://cdn.b.com/x.png", Resolve(base, "//cdn.b.com/x.png"))
	assert.Equal(t, "", Resolve(base, "  "))
}
