package domain

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var ErrInvalidURL = errors.New("invalid URL")

// skippedSchemes are href prefixes that never point at a checkable resource.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "sms:"}

// downloadExtensions are files that are not HTML and not worth crawling.
var downloadExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".zip":  true,
	".rar":  true,
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// normalizeHost lower-cases host and drops the scheme's default port.
func normalizeHost(scheme, host string) string {
	host = strings.ToLower(host)
	if port, ok := defaultPorts[scheme]; ok {
		host = strings.TrimSuffix(host, ":"+port)
	}
	return host
}

// GetOrigin returns scheme://host[:port] of an absolute http(s) URL.
func GetOrigin(u string) (string, error) {
	parsedUrl, err := url.Parse(u)
	if err != nil {
		return "", ErrInvalidURL
	}
	if !isWebScheme(parsedUrl.Scheme) {
		return "", ErrInvalidURL
	}
	if parsedUrl.Host == "" {
		return "", ErrInvalidURL
	}
	return parsedUrl.Scheme + "://" + normalizeHost(parsedUrl.Scheme, parsedUrl.Host), nil
}

// IsSameOrigin reports whether u shares the given origin. Unlike a plain
// prefix test, https://example.com.evil.org is not same-origin with
// https://example.com.
func IsSameOrigin(origin string, u string) bool {
	o, err := GetOrigin(u)
	return err == nil && o == origin
}

// GetRegistrableDomain returns the eTLD+1 of the URL's host, e.g.
// mobile.twitter.com -> twitter.com.
func GetRegistrableDomain(u string) (string, error) {
	parsedUrl, err := url.Parse(u)
	if err != nil {
		return "", ErrInvalidURL
	}
	host := strings.ToLower(parsedUrl.Hostname())
	if host == "" {
		return "", ErrInvalidURL
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}
	return d, nil
}

// ShouldSkipHref reports whether a raw href attribute should be ignored
// before it is resolved: fragment-only anchors and non-web schemes.
func ShouldSkipHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// IsDownloadURL reports whether the URL path ends with a known
// non-HTML download extension.
func IsDownloadURL(u *url.URL) bool {
	return downloadExtensions[strings.ToLower(path.Ext(u.Path))]
}

// Resolve turns href into an absolute, normalized http(s) URL relative to
// base. The fragment and a default port are dropped and an empty path
// becomes "/", so https://a.com, https://a.com:443/ and https://a.com/#top
// are one URL.
func Resolve(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, ErrInvalidURL
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if !isWebScheme(abs.Scheme) {
		return nil, ErrInvalidURL
	}
	if abs.Host == "" {
		return nil, ErrInvalidURL
	}
	abs.Host = normalizeHost(abs.Scheme, abs.Host)
	abs.Fragment = ""
	abs.RawFragment = ""
	if abs.Path == "" && abs.Opaque == "" {
		abs.Path = "/"
		abs.RawPath = ""
	}
	return abs, nil
}

func isWebScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}
