package analytics

import (
	"fmt"
	"os"
	"strings"

	"github.com/ua-parser/uap-go/uaparser"
)

const unknown = "unknown"

// Device types reported by the user agent parser.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
)

// Device is what a user agent says about the visiting client.
type Device struct {
	OSFamily   string
	DeviceType string
	Browser    string
}

var (
	botMarkers    = []string{"bot", "crawler", "spider", "scraper", "slurp", "facebookexternalhit", "whatsapp", "telegram", "preview"}
	tabletMarkers = []string{"ipad", "tablet", "kindle", "surface"}
	mobileMarkers = []string{"iphone", "android", "blackberry", "windows phone", "mobile", "phone"}
	mobileOSes    = []string{"ios", "android", "windows phone", "blackberry os", "firefox os", "sailfish os"}
	desktopOSes   = []string{"windows", "mac os x", "macos", "linux", "ubuntu", "chrome os", "freebsd", "openbsd", "netbsd", "fedora", "debian"}
)

// UserAgentParser derives OS family, device type and browser from a user
// agent string.
type UserAgentParser struct {
	parser *uaparser.Parser
}

// NewUserAgentParser loads the regexes at regexesPath, or the definitions
// bundled with uap-go when the path is empty.
func NewUserAgentParser(regexesPath string) (*UserAgentParser, error) {
	const op = "analytics.NewUserAgentParser"

	if regexesPath == "" {
		return &UserAgentParser{parser: uaparser.NewFromSaved()}, nil
	}

	data, err := os.ReadFile(regexesPath)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read regexes file: %w", op, err)
	}

	parser, err := uaparser.NewFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create parser: %w", op, err)
	}

	return &UserAgentParser{parser: parser}, nil
}

func (p *UserAgentParser) Parse(userAgent string) Device {
	if userAgent == "" {
		return Device{OSFamily: unknown, DeviceType: unknown, Browser: unknown}
	}

	client := p.parser.Parse(userAgent)

	return Device{
		OSFamily:   family(client.Os.Family),
		DeviceType: deviceType(client, userAgent),
		Browser:    family(client.UserAgent.Family),
	}
}

func deviceType(client *uaparser.Client, userAgent string) string {
	ua := strings.ToLower(userAgent)
	device := strings.ToLower(client.Device.Family)
	osFamily := strings.ToLower(client.Os.Family)

	if containsAny(strings.ToLower(client.UserAgent.Family), botMarkers) ||
		containsAny(ua, botMarkers) || device == "spider" {
		return DeviceBot
	}

	if device != "" && device != "other" {
		if containsAny(device, tabletMarkers) {
			return DeviceTablet
		}
		if containsAny(device, mobileMarkers) {
			return DeviceMobile
		}
	}

	if containsAny(osFamily, mobileOSes) {
		switch {
		case strings.Contains(osFamily, "ios") && strings.Contains(ua, "ipad"):
			return DeviceTablet
		case strings.Contains(osFamily, "android") && !strings.Contains(ua, "mobile"):
			return DeviceTablet
		default:
			return DeviceMobile
		}
	}

	if containsAny(osFamily, desktopOSes) {
		return DeviceDesktop
	}

	return unknown
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func family(s string) string {
	if s == "" || s == "Other" {
		return unknown
	}
	return s
}
