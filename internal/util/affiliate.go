package util

import (
	"fmt"
	"net/url"
	"strings"
)

// ProductURL builds the canonical affiliate-tagged product link for an ASIN.
func ProductURL(asin, tag string) string {
	return fmt.Sprintf("https://www.amazon.ca/dp/%s?tag=%s", asin, url.QueryEscape(tag))
}

// ApplyAffiliateTag rewrites the tag parameter on an Amazon URL. Non-Amazon
// URLs are returned unchanged. The second return value reports whether the
// URL was modified.
func ApplyAffiliateTag(rawURL, tag string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, false
	}
	if !strings.Contains(parsed.Host, "amazon.") {
		return rawURL, false
	}

	query := parsed.Query()
	if query.Get("tag") == tag {
		return parsed.String(), false
	}
	query.Set("tag", tag)
	parsed.RawQuery = query.Encode()
	return parsed.String(), true
}

// ExtractASIN pulls the ASIN out of an Amazon product path such as
// "/Widget-Pro/dp/B0ABC12345/ref=sr_1_1". Returns "" when no /dp/ segment
// is present.
func ExtractASIN(href string) string {
	idx := strings.Index(href, "/dp/")
	if idx == -1 {
		return ""
	}
	rest := href[idx+len("/dp/"):]
	if end := strings.IndexAny(rest, "/?"); end != -1 {
		rest = rest[:end]
	}
	return rest
}
