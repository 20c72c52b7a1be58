package services

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

const unknownIP = "unknown"

var botPatterns = []string{
	"bot", "crawler", "spider", "scraper", "crawling",
	"curl", "wget", "python-requests", "go-http-client",
	"java/", "apache-httpclient", "okhttp", "scrapy",
	"slurp", "baiduspider", "sogou", "exabot",
	"facebookexternalhit", "whatsapp",
	"pingdom", "uptimerobot", "monitor",
	"sqlmap", "nikto", "nmap", "masscan",
	"headless", "phantom", "selenium", "webdriver",
	"feed", "rss", "indexer",
}

// IsBot reports whether ua looks automated. A missing user agent counts as one.
func IsBot(ua string) bool {
	if len(ua) < 10 || len(ua) > 500 {
		return true
	}
	lower := strings.ToLower(ua)
	for _, p := range botPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// DeviceType classifies ua as mobile, tablet or desktop.
func DeviceType(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		return "tablet"
	case strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		return "tablet"
	case strings.Contains(lower, "mobi") || strings.Contains(lower, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}

// HashIP returns the salted SHA-256 of ip in hex.
func HashIP(ip, salt string) string {
	if ip == "" || ip == unknownIP {
		return unknownIP
	}
	sum := sha256.Sum256([]byte(ip + salt))
	return hex.EncodeToString(sum[:])
}

// AnonymizeIP zeroes the last IPv4 octet or the last 64 bits of an IPv6 address.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	if v4 := parsed.To4(); v4 != nil {
		return net.IPv4(v4[0], v4[1], v4[2], 0).String()
	}
	masked := parsed.Mask(net.CIDRMask(64, 128))
	return masked.String()
}

// StoredIP is the form of ip kept in the visitors table.
func StoredIP(ip, salt string, anonymize bool) string {
	if anonymize {
		ip = AnonymizeIP(ip)
	}
	return HashIP(ip, salt)
}
