package urlutil

import (
	"crypto/sha1"
	"encoding/hex"
	"mime"
	"net/url"
	"path"
	"strings"
)

// mimeExtensions maps declared content types to the extension appended to
// extension-less file names.
var mimeExtensions = map[string]string{
	"text/css":                 ".css",
	"text/javascript":          ".js",
	"application/javascript":   ".js",
	"application/x-javascript": ".js",
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/svg+xml":            ".svg",
	"video/mp4":                ".mp4",
	"video/webm":               ".webm",
	"font/woff":                ".woff",
	"font/woff2":               ".woff2",
	"font/ttf":                 ".ttf",
	"font/otf":                 ".otf",
	"application/font-woff":    ".woff",
}

var fontExtensions = []string{".woff", ".woff2", ".ttf", ".otf", ".eot"}

// ExtensionForMIME returns the file extension for a Content-Type header value,
// ignoring parameters. Unknown types yield "".
func ExtensionForMIME(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return mimeExtensions[strings.ToLower(mediaType)]
}

// ShortHash returns the first 8 hex digits of the SHA-1 of s.
func ShortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// FileName derives the local file name for an asset URL. The base name of the
// URL path is used (or "file"), an extension is inferred from contentType when
// the name has none, and a URL carrying a query string gets the short hash of
// that query inserted before the extension, so URLs differing only by query
// never share a name.
func FileName(rawURL, contentType string) string {
	var urlPath, query string
	if parsed, err := url.Parse(rawURL); err == nil {
		urlPath, query = parsed.Path, parsed.RawQuery
	}

	name := path.Base(urlPath)
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	if !strings.Contains(name, ".") {
		name += ExtensionForMIME(contentType)
	}
	if query != "" {
		name = WithSuffix(name, ShortHash(query))
	}
	return name
}

// WithSuffix inserts "-suffix" before the last extension of name.
func WithSuffix(name, suffix string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i] + "-" + suffix + name[i:]
	}
	return name + "-" + suffix
}

// IsFontURL reports whether the URL path ends in a web font extension.
func IsFontURL(rawURL string) bool {
	p := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		p = parsed.Path
	}
	ext := strings.ToLower(path.Ext(p))
	for _, fontExt := range fontExtensions {
		if ext == fontExt {
			return true
		}
	}
	return false
}
