// AngelaMos | 2026
// path.go

package gate

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// CanonicalPath resolves dot segments, repeated slashes and backslashes
// the way a browser or the web renderer would, so prefix checks see the
// page that will actually be served. A trailing slash is kept.
func CanonicalPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// canonicalTarget returns the canonical URL for r and whether r already
// uses it. Encoded dots, slashes and backslashes are never canonical.
func canonicalTarget(r *http.Request) (string, bool) {
	canonical := CanonicalPath(r.URL.Path)

	escaped := strings.ToLower(r.URL.EscapedPath())
	encoded := strings.Contains(escaped, "%2e") ||
		strings.Contains(escaped, "%2f") ||
		strings.Contains(escaped, "%5c")

	if canonical == r.URL.Path && !encoded {
		return "", true
	}

	return (&url.URL{Path: canonical, RawQuery: r.URL.RawQuery}).String(), false
}
