package utils

import "strings"

// Device type labels.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// ParseUserAgent classifies a raw User-Agent header into device type,
// browser and operating system. This intentionally covers only the coarse
// buckets the dashboard breaks visitors down by.
func ParseUserAgent(ua string) (device, browser, os string) {
	lower := strings.ToLower(ua)

	switch {
	case strings.Contains(lower, "ipad") ||
		(strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")) ||
		strings.Contains(lower, "tablet"):
		device = DeviceTablet
	case strings.Contains(lower, "mobi") ||
		strings.Contains(lower, "iphone") ||
		strings.Contains(lower, "android"):
		device = DeviceMobile
	default:
		device = DeviceDesktop
	}

	switch {
	case strings.Contains(lower, "edg/") || strings.Contains(lower, "edge"):
		browser = "Edge"
	case strings.Contains(lower, "opr/") || strings.Contains(lower, "opera"):
		browser = "Opera"
	case strings.Contains(lower, "chrome") || strings.Contains(lower, "crios"):
		browser = "Chrome"
	case strings.Contains(lower, "firefox") || strings.Contains(lower, "fxios"):
		browser = "Firefox"
	case strings.Contains(lower, "safari"):
		browser = "Safari"
	default:
		browser = "Other"
	}

	switch {
	case strings.Contains(lower, "windows"):
		os = "Windows"
	case strings.Contains(lower, "iphone") || strings.Contains(lower, "ipad") ||
		strings.Contains(lower, "ios"):
		os = "iOS"
	case strings.Contains(lower, "mac os") || strings.Contains(lower, "macintosh"):
		os = "macOS"
	case strings.Contains(lower, "android"):
		os = "Android"
	case strings.Contains(lower, "linux"):
		os = "Linux"
	default:
		os = "Other"
	}

	return device, browser, os
}
