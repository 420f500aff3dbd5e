package variant

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const page = `<html><head><title>Acme Widget</title></head><body>
<h1>Acme Widget</h1>
<a href="https://shop.example/buy">Order now</a>
<a href="/about">About us</a>
</body></html>`

func TestRender(t *testing.T) {
	out, err := Render(page, "Acme Widget")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"cta link", `<a href="<?php echo $ctaLink; ?>">Order now</a>`},
		{"other link kept", `<a href="/about">About us</a>`},
		{"label replaced", `<h1><?=$productName;?></h1>`},
		{"headers after title", "</title>\n<?= $headers; ?>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}

	if strings.Contains(out, "Acme Widget") {
		t.Error("label should be replaced everywhere")
	}
	if strings.Count(out, "<?= $headers; ?>") != 1 {
		t.Error("headers expression should be inserted exactly once")
	}
}

func TestRenderWithoutTitleOrLabel(t *testing.T) {
	out, err := Render(`<p><a href="x">ORDERS</a></p>`, "")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if strings.Contains(out, "$headers") {
		t.Error("headers must not be inserted without a title")
	}
	if !strings.Contains(out, `href="<?php echo $ctaLink; ?>"`) {
		t.Errorf("case-insensitive match expected, got %s", out)
	}
}

func TestGeneratePrefersLocalIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>raw</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "local-index.html"), []byte("<p>local</p>"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := Generate(dir, "")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "local") {
		t.Errorf("expected local-index.html as source, got %s", data)
	}
}

func TestGenerateFallsBackToIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>raw</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, err := Generate(dir, "")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if filepath.Base(path) != FileName {
		t.Errorf("unexpected output %s", path)
	}
}

func TestGenerateNoSource(t *testing.T) {
	if _, err := Generate(t.TempDir(), "x"); err == nil {
		t.Error("expected error when no HTML source exists")
	}
}
