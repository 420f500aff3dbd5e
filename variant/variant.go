// Package variant derives the templated content.php page from a mirrored
// page's markup.
package variant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// FileName is the name of the generated file inside the output folder.
	FileName = "content.php"

	ctaLink     = "<?php echo $ctaLink; ?>"
	productName = "<?=$productName;?>"
	headers     = "<?= $headers; ?>"

	// ctaPlaceholder survives HTML attribute escaping; it is swapped for
	// ctaLink after rendering.
	ctaPlaceholder = "__PHPCTA_LINK__"
)

var titleClose = regexp.MustCompile(`(?i)</title\s*>`)

// Render returns the templated variant of markup:
//   - every anchor whose visible text contains "order" links to the CTA
//   - every occurrence of label becomes the product name expression
//   - the headers expression follows the first closing title tag
//
// The label replacement is plain text substitution with no word boundaries,
// so a label that also occurs inside markup is replaced there too.
func Render(markup, label string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		if strings.Contains(strings.ToLower(strings.TrimSpace(a.Text())), "order") {
			a.SetAttr("href", ctaPlaceholder)
		}
	})

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}

	if label != "" {
		out = strings.ReplaceAll(out, label, productName)
	}
	out = strings.ReplaceAll(out, ctaPlaceholder, ctaLink)

	if loc := titleClose.FindStringIndex(out); loc != nil {
		out = out[:loc[1]] + "\n" + headers + out[loc[1]:]
	}
	return out, nil
}

// Generate writes content.php into folder, preferring local-index.html as
// the source and falling back to index.html. It returns the written path.
func Generate(folder, label string) (string, error) {
	var src []byte
	var err error
	for _, name := range []string{"local-index.html", "index.html"} {
		src, err = os.ReadFile(filepath.Join(folder, name))
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
	}
	if err != nil {
		return "", fmt.Errorf("no HTML source found in %s", folder)
	}

	out, err := Render(string(src), label)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(folder, FileName)
	if err := os.WriteFile(dest, []byte(out), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", FileName, err)
	}
	return dest, nil
}
