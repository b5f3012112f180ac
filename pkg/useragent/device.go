package useragent

import (
	"net/http"
	"strings"
)

// Checked in order; Edge and Chrome both claim to be Safari.
var browsers = []struct {
	name, token string
	excludes    []string
}{
	{"Edge", "Edg/", nil},
	{"Chrome", "Chrome/", nil},
	{"Firefox", "Firefox/", nil},
	{"Safari", "Safari/", []string{"Chrome"}},
}

var systems = []struct {
	name, token string
}{
	{"Windows 10/11", "Windows NT 10.0"},
	{"Windows", "Windows"},
	{"Android", "Android"},
	{"iOS", "iPhone"},
	{"iOS", "iPad"},
	{"macOS", "Mac OS X"},
	{"Linux", "Linux"},
}

// Describe turns a User-Agent string into "Browser 120 on OS".
func Describe(ua string) string {
	if ua == "" {
		return "Unknown Device"
	}

	browser, version := "Unknown Browser", ""
	for _, b := range browsers {
		if !strings.Contains(ua, b.token) || containsAny(ua, b.excludes) {
			continue
		}
		browser = b.name
		version = majorVersion(ua, b.token)
		break
	}

	os := "Unknown OS"
	for _, s := range systems {
		if strings.Contains(ua, s.token) {
			os = s.name
			break
		}
	}

	if version != "" {
		return browser + " " + version + " on " + os
	}
	return browser + " on " + os
}

// ExtractDeviceInfo describes the request's User-Agent header.
func ExtractDeviceInfo(r *http.Request) string {
	return Describe(r.Header.Get("User-Agent"))
}

// ExtractIPAddress gets the client address, honouring X-Forwarded-For and
// X-Real-IP set by proxies.
func ExtractIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func majorVersion(ua, token string) string {
	idx := strings.Index(ua, token)
	if idx == -1 {
		return ""
	}
	rest := ua[idx+len(token):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	return rest[:end]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
