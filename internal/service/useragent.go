package service

import "strings"

// ClassifyDevice buckets a User-Agent header into a coarse device class for
// the audit log. Checks run in order: the Mobile token wins over tablet and
// desktop OS tokens, and any unrecognized non-empty agent counts as Desktop.
func ClassifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "Unknown"
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "iphone"):
		return "Mobile"
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"):
		return "Tablet"
	case strings.Contains(ua, "windows"):
		return "Windows PC"
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os"):
		return "Mac"
	case strings.Contains(ua, "linux"), strings.Contains(ua, "x11"):
		return "Linux"
	default:
		return "Desktop"
	}
}
