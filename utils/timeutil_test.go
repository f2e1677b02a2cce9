package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		age  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{59 * time.Second, "just now"},
		{90 * time.Second, "1 minutes ago"},
		{45 * time.Minute, "45 minutes ago"},
		{2 * time.Hour, "2 hours ago"},
		{23 * time.Hour, "23 hours ago"},
		{25 * time.Hour, "1 day ago"},
		// Anything older collapses to the same coarse bucket.
		{40 * 24 * time.Hour, "1 day ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(now.Add(-tt.age), now))
	}
}

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		ua          string
		wantDevice  string
		wantBrowser string
		wantOS      string
	}{
		{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			DeviceDesktop, "Chrome", "Windows",
		},
		{
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			DeviceMobile, "Safari", "iOS",
		},
		{
			"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/604.1",
			DeviceTablet, "Safari", "iOS",
		},
		{
			"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0 Mobile Safari/537.36",
			DeviceMobile, "Chrome", "Android",
		},
		{
			"Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0",
			DeviceDesktop, "Firefox", "Linux",
		},
		{"", DeviceDesktop, "Other", "Other"},
	}

	for _, tt := range tests {
		device, browser, os := ParseUserAgent(tt.ua)
		assert.Equal(t, tt.wantDevice, device, tt.ua)
		assert.Equal(t, tt.wantBrowser, browser, tt.ua)
		assert.Equal(t, tt.wantOS, os, tt.ua)
	}
}
