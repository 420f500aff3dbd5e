package urlutil

import "testing"

func TestIsHTTPScheme(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"https://example.com", true},
		{"http://example.com", true},
		{"HTTP://EXAMPLE.COM", true},
		{"mailto:user@example.com", false},
		{"javascript:void(0)", false},
		{"data:image/png;base64,AAAA", false},
		{"ftp://files.example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsHTTPScheme(tt.input); got != tt.expected {
				t.Errorf("IsHTTPScheme(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsRelative(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"./local.woff2", true},
		{"../img/b.png", true},
		{"/fonts/a.woff", true},
		{"font.ttf", true},
		{"https://cdn.example/font.woff2", false},
		{"//cdn.example/font.woff2", false},
		{"data:font/woff2;base64,AAAA", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsRelative(tt.input); got != tt.expected {
				t.Errorf("IsRelative(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolveReference(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		ref      string
		expected string
	}{
		{
			name:     "relative path",
			base:     "https://example.com/dir/page.html",
			ref:      "img/a.png",
			expected: "https://example.com/dir/img/a.png",
		},
		{
			name:     "root relative",
			base:     "https://example.com/dir/page.html",
			ref:      "/a.png",
			expected: "https://example.com/a.png",
		},
		{
			name:     "parent relative from stylesheet",
			base:     "https://example.com/css/s.css",
			ref:      "../img/b.png",
			expected: "https://example.com/img/b.png",
		},
		{
			name:     "query on base does not corrupt join",
			base:     "https://example.com/offer/index.php?C1=1&uid=2",
			ref:      "assets/a.png",
			expected: "https://example.com/offer/assets/a.png",
		},
		{
			name:     "fragment on base does not corrupt join",
			base:     "https://example.com/offer/#top",
			ref:      "a.png",
			expected: "https://example.com/offer/a.png",
		},
		{
			name:     "scheme relative takes base scheme",
			base:     "https://example.com/",
			ref:      "//cdn.example.com/x.js",
			expected: "https://cdn.example.com/x.js",
		},
		{
			name:     "absolute passes through",
			base:     "https://example.com/",
			ref:      "http://other.com/x.js",
			expected: "http://other.com/x.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveReference(tt.base, tt.ref)
			if err != nil {
				t.Fatalf("ResolveReference() error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("ResolveReference(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.expected)
			}
		})
	}
}
