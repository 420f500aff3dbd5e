package urlutil

import (
	"strings"
	"testing"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		expected    string
	}{
		{"plain basename", "https://example.com/img/logo.png", "", "logo.png"},
		{"extension inferred from mime", "https://example.com/api/avatar", "image/png", "avatar.png"},
		{"mime with parameters", "https://example.com/style", "text/css; charset=utf-8", "style.css"},
		{"unknown mime leaves name", "https://example.com/blob", "application/x-unknown", "blob"},
		{"empty path", "https://example.com/", "text/css", "file.css"},
		{"query hashed before extension", "https://example.com/a.png?v=1", "", "a-" + ShortHash("v=1") + ".png"},
		{"query hashed without extension", "https://fonts.example.com/css2?family=Inter", "application/x-unknown", "css2-" + ShortHash("family=Inter")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(tt.url, tt.contentType); got != tt.expected {
				t.Errorf("FileName(%q, %q) = %q, want %q", tt.url, tt.contentType, got, tt.expected)
			}
		})
	}
}

func TestFileNameQueryDisambiguation(t *testing.T) {
	a := FileName("https://example.com/app.js?v=1", "")
	b := FileName("https://example.com/app.js?v=2", "")
	plain := FileName("https://example.com/app.js", "")

	if a == b || a == plain || b == plain {
		t.Errorf("names must differ: %q %q %q", a, b, plain)
	}
	if !strings.HasSuffix(a, ".js") || !strings.HasPrefix(a, "app-") {
		t.Errorf("expected app-<hash>.js, got %q", a)
	}
	if FileName("https://example.com/app.js?v=1", "") != a {
		t.Error("FileName must be deterministic")
	}
}

func TestIsFontURL(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/f/inter.woff2", true},
		{"https://example.com/f/inter.WOFF", true},
		{"https://example.com/f/icons.eot?#iefix", true},
		{"https://example.com/f/icons.ttf?v=3", true},
		{"https://example.com/img/bg.png", false},
		{"https://example.com/woff2", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := IsFontURL(tt.url); got != tt.expected {
				t.Errorf("IsFontURL(%q) = %v, want %v", tt.url, got, tt.expected)
			}
		})
	}
}

func TestExtensionForMIME(t *testing.T) {
	if got := ExtensionForMIME("IMAGE/JPEG"); got != ".jpg" {
		t.Errorf("ExtensionForMIME uppercase = %q", got)
	}
	if got := ExtensionForMIME(""); got != "" {
		t.Errorf("ExtensionForMIME empty = %q", got)
	}
}
