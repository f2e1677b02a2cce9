package utils

import (
	"net/url"
	"strings"

	"pulsetrack/api/models"
)

// Domain fragments that mark a referrer as a search engine or social
// network. Matching is substring-based on the referrer host, which keeps
// regional variants (google.de, search.yahoo.co.jp) covered.
var (
	searchEngineDomains = []string{
		"google.", "bing.com", "yahoo.", "duckduckgo.com", "baidu.com",
		"yandex.", "ecosia.org", "sogou.com", "startpage.com",
	}
	socialDomains = []string{
		"facebook.com", "fb.com", "twitter.com", "t.co", "x.com",
		"instagram.com", "linkedin.com", "reddit.com", "pinterest.",
		"tiktok.com", "youtube.com", "weibo.com", "zhihu.com", "t.me",
		"telegram.", "news.ycombinator.com", "mastodon.",
	}
	emailMediums = map[string]bool{"email": true, "newsletter": true}
)

// ClassifyReferrer derives the coarse traffic-source label and referrer
// domain for a session. UTM parameters win over the referrer string: an
// email-style utm_medium classifies as email, any other UTM tagging as paid.
func ClassifyReferrer(referrer, utmSource, utmMedium string) (source, domain string) {
	domain = ReferrerDomain(referrer)

	if utmSource != "" || utmMedium != "" {
		if emailMediums[strings.ToLower(utmMedium)] {
			return models.SourceEmail, domain
		}
		return models.SourcePaid, domain
	}

	if strings.TrimSpace(referrer) == "" {
		return models.SourceDirect, ""
	}
	if domain == "" {
		// Unparseable referrer, treat like a plain external link.
		return models.SourceReferral, ""
	}

	for _, d := range searchEngineDomains {
		if strings.Contains(domain, d) {
			return models.SourceOrganic, domain
		}
	}
	for _, d := range socialDomains {
		if strings.Contains(domain, d) {
			return models.SourceSocial, domain
		}
	}
	return models.SourceReferral, domain
}

// ReferrerDomain extracts the bare host from a referrer URL, dropping any
// leading "www.". Returns "" when the referrer has no usable host.
func ReferrerDomain(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ""
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// ExtractUTM pulls utm_source/utm_medium/utm_campaign out of a page URL's
// query string. The current page may arrive as a bare path with a query
// suffix, which url.Parse handles fine.
func ExtractUTM(pageURL string) (source, medium, campaign string) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", "", ""
	}
	q := u.Query()
	return q.Get("utm_source"), q.Get("utm_medium"), q.Get("utm_campaign")
}
