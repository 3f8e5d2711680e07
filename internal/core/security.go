// AngelaMos | 2026
// security.go

package core

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
)

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// CookieValue returns the URL-decoded value of the named cookie in a raw
// Cookie header. Values that fail to decode are returned as-is.
func CookieValue(cookieHeader, name string) string {
	if cookieHeader == "" || name == "" {
		return ""
	}

	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		return cookieValueLenient(cookieHeader, name)
	}

	for _, c := range cookies {
		if c.Name == name {
			return decodeCookie(c.Value)
		}
	}

	return ""
}

func cookieValueLenient(cookieHeader, name string) string {
	header := http.Header{"Cookie": []string{cookieHeader}}
	req := http.Request{Header: header}

	c, err := req.Cookie(name)
	if err != nil {
		return ""
	}

	return decodeCookie(c.Value)
}

func decodeCookie(v string) string {
	decoded, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return decoded
}
