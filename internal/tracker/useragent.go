package tracker

import (
	"strings"
)

// DeviceInfo holds the classification of a User-Agent header.
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // desktop, mobile, tablet, unknown
	Browser    string `json:"browser"`     // chrome, firefox, safari, edge, opera, unknown
	OS         string `json:"os"`          // windows, macos, linux, android, ios, unknown
}

var mobileKeywords = []string{"mobile", "android", "iphone", "ipod", "blackberry", "windows phone"}

// ParseUserAgent classifies a raw User-Agent header. It is total and
// deterministic: an empty string yields unknown for all three fields,
// anything else always classifies (desktop is the device fallback).
func ParseUserAgent(userAgent string) DeviceInfo {
	if userAgent == "" {
		return DeviceInfo{DeviceType: "unknown", Browser: "unknown", OS: "unknown"}
	}

	ua := strings.ToLower(userAgent)
	info := DeviceInfo{DeviceType: "desktop", Browser: "unknown", OS: "unknown"}

	for _, kw := range mobileKeywords {
		if strings.Contains(ua, kw) {
			info.DeviceType = "mobile"
			break
		}
	}
	if info.DeviceType == "desktop" {
		if strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") {
			info.DeviceType = "tablet"
		}
	}

	// Edge must be checked before Chrome and Safari: Edge user agents
	// contain both substrings.
	switch {
	case strings.Contains(ua, "edg"):
		info.Browser = "edge"
	case strings.Contains(ua, "chrome"):
		info.Browser = "chrome"
	case strings.Contains(ua, "safari"):
		info.Browser = "safari"
	case strings.Contains(ua, "firefox"):
		info.Browser = "firefox"
	case strings.Contains(ua, "opera"), strings.Contains(ua, "opr"):
		info.Browser = "opera"
	}

	switch {
	case strings.Contains(ua, "windows"):
		info.OS = "windows"
	case strings.Contains(ua, "mac"):
		info.OS = "macos"
	case strings.Contains(ua, "linux"):
		info.OS = "linux"
	case strings.Contains(ua, "android"):
		info.OS = "android"
	case strings.Contains(ua, "ios"), strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		info.OS = "ios"
	}

	return info
}
