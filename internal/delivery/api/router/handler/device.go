package handler

import (
	"strings"

	"authflow/internal/domain/entity"

	"github.com/labstack/echo/v4"
)

type uaRule struct {
	token string
	name  string
}

// Order matters: Edge and Opera carry the Chrome token, Chrome carries Safari.
var browserRules = []uaRule{
	{token: "Edg/", name: "Edge"},
	{token: "OPR/", name: "Opera"},
	{token: "Firefox/", name: "Firefox"},
	{token: "Chrome/", name: "Chrome"},
	{token: "Version/", name: "Safari"},
}

// deviceFromRequest makes a best-effort guess at the client from its User-Agent. Anything it
// cannot recognize is left empty and later filled with a placeholder.
func deviceFromRequest(c echo.Context) entity.DeviceInfo {
	ua := c.Request().UserAgent()
	device := entity.DeviceInfo{
		UserAgent: ua,
		IPAddress: c.RealIP(),
	}
	if ua == "" {
		return device
	}

	for _, rule := range browserRules {
		if version, ok := versionAfter(ua, rule.token); ok {
			device.Browser = rule.name
			device.BrowserVersion = version

			break
		}
	}

	switch {
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		device.OS = "iOS"
		device.OSVersion = strings.ReplaceAll(between(ua, "OS ", " "), "_", ".")
	case strings.Contains(ua, "Android"):
		device.OS = "Android"
		device.OSVersion = between(ua, "Android ", ";")
	case strings.Contains(ua, "Windows NT"):
		device.OS = "Windows"
		device.OSVersion = between(ua, "Windows NT ", ";")
	case strings.Contains(ua, "Mac OS X"):
		device.OS = "macOS"
		device.OSVersion = strings.ReplaceAll(between(ua, "Mac OS X ", ")"), "_", ".")
	case strings.Contains(ua, "Linux"):
		device.OS = "Linux"
	}

	switch {
	case strings.Contains(ua, "iPad"), strings.Contains(ua, "Tablet"):
		device.DeviceType = "tablet"
	case strings.Contains(ua, "Mobile"):
		device.DeviceType = "mobile"
	default:
		device.DeviceType = "web"
	}

	return device
}

// versionAfter returns the version that follows token, up to the next space.
func versionAfter(ua, token string) (string, bool) {
	_, rest, ok := strings.Cut(ua, token)
	if !ok {
		return "", false
	}
	version, _, _ := strings.Cut(rest, " ")

	return version, true
}

func between(s, start, end string) string {
	_, rest, ok := strings.Cut(s, start)
	if !ok {
		return ""
	}
	value, _, _ := strings.Cut(rest, end)

	return strings.TrimSpace(value)
}
