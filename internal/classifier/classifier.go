// Package classifier maps raw User-Agent and Referer strings to the
// dimensions the analytics queries group by: device class, browser, OS and
// referrer source. Classification sits on the hot ingestion path, so it is
// pure and never fails: unmatched input degrades to "unknown"/"Other"/
// "Direct" rather than an error.
package classifier

import (
	"net/url"
	"strings"

	v1 "github.com/sitepulse-io/sitepulse/internal/api/v1"
)

// ReferrerDirect is returned for a missing or unparsable referrer.
const ReferrerDirect = "Direct"

// Classification is the result of classifying one visit's context.
type Classification struct {
	Device         string
	Browser        string
	OS             string
	ReferrerSource string
}

// rule is one ordered substring rule. Patterns are matched against the
// lower-cased input; the first rule with any matching pattern wins.
type rule struct {
	label    string
	patterns []string
}

// Tablet rules must run before mobile: an iPad UA also contains "mobile"
// on some iOS versions, and Android tablets contain "android".
var deviceRules = []rule{
	{v1.DeviceTablet, []string{"ipad", "tablet", "kindle", "silk/", "playbook"}},
	{v1.DeviceMobile, []string{"iphone", "ipod", "mobi", "android", "phone", "opera mini", "blackberry"}},
	{v1.DeviceDesktop, []string{"windows", "macintosh", "x11", "cros", "linux"}},
}

// Edge, Opera and Samsung Internet embed "chrome/" in their UA and must be
// checked first; Chrome embeds "safari" and must precede it.
var browserRules = []rule{
	{"Edge", []string{"edg/", "edge/"}},
	{"Opera", []string{"opr/", "opera"}},
	{"Samsung Internet", []string{"samsungbrowser"}},
	{"Firefox", []string{"firefox/", "fxios"}},
	{"Chrome", []string{"chrome/", "crios"}},
	{"Safari", []string{"safari/"}},
	{"Internet Explorer", []string{"msie", "trident/"}},
}

// iOS before macOS ("like Mac OS X" appears in iPhone UAs), Android and
// Chrome OS before Linux (both embed "linux").
var osRules = []rule{
	{"iOS", []string{"iphone", "ipad", "ipod"}},
	{"Android", []string{"android"}},
	{"Windows", []string{"windows"}},
	{"Chrome OS", []string{"cros"}},
	{"macOS", []string{"macintosh", "mac os x"}},
	{"Linux", []string{"linux", "x11"}},
}

// Classify maps a raw user-agent and referrer to their dimensions.
// Same inputs always yield the same result.
func Classify(userAgent, referrerURL string) Classification {
	ua := strings.ToLower(userAgent)
	return Classification{
		Device:         matchRules(ua, deviceRules, v1.DeviceUnknown),
		Browser:        matchRules(ua, browserRules, "Other"),
		OS:             matchRules(ua, osRules, "Other"),
		ReferrerSource: ClassifyReferrer(referrerURL),
	}
}

func matchRules(input string, rules []rule, fallback string) string {
	if input == "" {
		return fallback
	}
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(input, p) {
				return r.label
			}
		}
	}
	return fallback
}

// ClassifyReferrer resolves a referrer URL to a named platform, the bare
// host for unknown external sites, or "Direct" when absent/unparsable.
func ClassifyReferrer(referrerURL string) string {
	if referrerURL == "" {
		return ReferrerDirect
	}
	u, err := url.Parse(referrerURL)
	if err != nil || u.Hostname() == "" {
		return ReferrerDirect
	}

	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	if name, ok := lookupPlatform(host); ok {
		return name
	}
	return host
}

// lookupPlatform matches a host against the platform table, including
// subdomains (news.google.com matches the google.com entry).
func lookupPlatform(host string) (string, bool) {
	for h := host; h != ""; {
		if name, ok := platformTable[h]; ok {
			return name, true
		}
		idx := strings.Index(h, ".")
		if idx < 0 {
			break
		}
		h = h[idx+1:]
	}
	return "", false
}
