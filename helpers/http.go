package helpers

import (
	"bytes"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
)

// Browser-like header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	}

	referers = []string{
		"https://www.google.com.mx/",
		"https://www.google.com/",
		"https://www.bing.com/",
	}
)

// RandomUserAgent returns one of the known desktop user agents
func RandomUserAgent() string {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	return userAgents[rnd.Intn(len(userAgents))]
}

// BrowserHeaders returns randomized browser-like request headers for the
// given Accept-Language value.
func BrowserHeaders(acceptLanguage string) map[string]string {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	if acceptLanguage == "" {
		acceptLanguage = "es-MX,es;q=0.9,en;q=0.8"
	}
	return map[string]string{
		"User-Agent":                userAgents[rnd.Intn(len(userAgents))],
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           acceptLanguage,
		"Cache-Control":             "no-cache",
		"Referer":                   referers[rnd.Intn(len(referers))],
		"Pragma":                    "no-cache",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "cross-site",
		"Sec-Fetch-User":            "?1",
	}
}

// ApplyHeaders sets every header on req, keeping the User-Agent if one is
// already present.
func ApplyHeaders(header http.Header, headers map[string]string) {
	for k, v := range headers {
		if k == "User-Agent" && header.Get(k) != "" {
			continue
		}
		header.Set(k, v)
	}
}

// ToUTF8 converts a response body to UTF-8 using the Content-Type header and
// body sniffing.
func ToUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)

	// If already UTF-8, return as is
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}

	return buf.Bytes(), nil
}
