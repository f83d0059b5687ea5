package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	v1 "github.com/sitepulse-io/sitepulse/internal/api/v1"
)

const (
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaSafariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaSafariIPad    = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
	uaFirefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaEdgeWindows   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
	uaAndroidTablet = "Mozilla/5.0 (Linux; Android 13; SM-X700 Tablet) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaAndroidPhone  = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
)

func TestClassify_Device(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"windows desktop", uaChromeWindows, v1.DeviceDesktop},
		{"iphone mobile", uaSafariIPhone, v1.DeviceMobile},
		{"ipad is tablet not mobile", uaSafariIPad, v1.DeviceTablet},
		{"android tablet before mobile", uaAndroidTablet, v1.DeviceTablet},
		{"android phone", uaAndroidPhone, v1.DeviceMobile},
		{"linux desktop", uaFirefoxLinux, v1.DeviceDesktop},
		{"empty ua", "", v1.DeviceUnknown},
		{"garbage ua", "curl/8.1", v1.DeviceUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.ua, "").Device)
		})
	}
}

func TestClassify_BrowserAndOS(t *testing.T) {
	tests := []struct {
		name        string
		ua          string
		wantBrowser string
		wantOS      string
	}{
		{"chrome windows", uaChromeWindows, "Chrome", "Windows"},
		{"edge not chrome", uaEdgeWindows, "Edge", "Windows"},
		{"safari ios", uaSafariIPhone, "Safari", "iOS"},
		{"firefox linux", uaFirefoxLinux, "Firefox", "Linux"},
		{"android chrome", uaAndroidPhone, "Chrome", "Android"},
		{"unmatched", "curl/8.1", "Other", "Other"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.ua, "")
			require.Equal(t, tc.wantBrowser, got.Browser)
			require.Equal(t, tc.wantOS, got.OS)
		})
	}
}

func TestClassifyReferrer(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"empty is direct", "", ReferrerDirect},
		{"unparsable is direct", "::::not-a-url", ReferrerDirect},
		{"scheme only is direct", "https://", ReferrerDirect},
		{"google", "https://www.google.com/search?q=x", "Google"},
		{"google subdomain", "https://news.google.com/articles/1", "Google"},
		{"twitter legacy host", "https://twitter.com/someone", "Twitter"},
		{"twitter x host", "https://x.com/someone/status/1", "Twitter"},
		{"hacker news", "https://news.ycombinator.com/item?id=1", "Hacker News"},
		{"github", "https://github.com/org/repo", "GitHub"},
		{"unknown host returns bare host", "https://www.example-blog.net/post", "example-blog.net"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyReferrer(tc.ref))
		})
	}
}

// Classification must be pure: repeated calls with identical input yield
// identical output, with and without the memo cache in front.
func TestClassify_Idempotent(t *testing.T) {
	first := Classify(uaSafariIPad, "https://www.google.com/")
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Classify(uaSafariIPad, "https://www.google.com/"))
	}

	cache := NewCache()
	cached := cache.Classify(uaSafariIPad, "https://www.google.com/")
	require.Equal(t, first, cached)
	require.Equal(t, first, cache.Classify(uaSafariIPad, "https://www.google.com/"))
}
