// Package stylesheet finds the references a downloaded stylesheet makes to
// other resources. It deliberately understands only two constructs, @import
// targets and url(...) tokens inside declaration values; everything else in
// the sheet is passed over untouched.
package stylesheet

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"golang.org/x/text/encoding/charmap"
)

// Decode returns the sheet as text. UTF-8 is used when the bytes are valid
// UTF-8; otherwise they are read as ISO-8859-1, which cannot fail.
func Decode(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(decoded)
}

// References lists, in document order, every @import target and every url()
// argument found in a declaration value. Duplicates are kept. Quotes around
// a reference are removed; the returned strings are otherwise exactly as they
// appear in the text, so they can be substituted literally.
func References(text string) ([]string, error) {
	p := css.NewParser(parse.NewInput(strings.NewReader(text)), false)

	var refs []string
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != nil && !errors.Is(err, io.EOF) {
				return refs, err
			}
			return refs, nil
		case css.AtRuleGrammar, css.BeginAtRuleGrammar:
			if strings.EqualFold(string(data), "@import") {
				if ref := importTarget(p.Values()); ref != "" {
					refs = append(refs, ref)
				}
			}
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			refs = append(refs, urlArguments(joinValues(p.Values()))...)
		}
	}
}

// importTarget returns the first url() or string argument of an @import.
func importTarget(values []css.Token) string {
	for _, v := range values {
		switch v.TokenType {
		case css.URLToken:
			if refs := urlArguments(string(v.Data)); len(refs) > 0 {
				return refs[0]
			}
		case css.FunctionToken:
			if refs := urlArguments(joinValues(values)); len(refs) > 0 {
				return refs[0]
			}
			return ""
		case css.StringToken:
			return unquote(string(v.Data))
		}
	}
	return ""
}

func joinValues(values []css.Token) string {
	var b strings.Builder
	for _, v := range values {
		b.Write(v.Data)
	}
	return b.String()
}

// urlArguments splits value on "url(" and returns each argument up to the
// next ")". This is intentionally naive.
func urlArguments(value string) []string {
	parts := strings.Split(value, "url(")
	if len(parts) < 2 {
		return nil
	}
	var refs []string
	for _, part := range parts[1:] {
		end := strings.IndexByte(part, ')')
		if end == -1 {
			continue
		}
		if ref := unquote(part[:end]); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
