package mirror

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
)

// Page is a fetched HTML document.
type Page struct {
	URL         *url.URL // Final URL after redirects; the base for relative references
	Body        []byte   // Content-decoded body, byte for byte as served
	ContentType string
}

// fetchPage downloads the page once. Compressed bodies are decoded here
// because an explicit Accept-Encoding turns off the transport's own gzip.
func fetchPage(ctx context.Context, client *http.Client, pageURL, userAgent string, log logrus.FieldLogger) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: pageURL, Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Page{
		URL:         resp.Request.URL,
		Body:        decodeContent(raw, resp.Header.Get("Content-Encoding"), log),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// decodeContent undoes Content-Encoding. Bodies that fail to decode are
// returned unchanged.
func decodeContent(data []byte, contentEncoding string, log logrus.FieldLogger) []byte {
	enc := strings.ToLower(strings.TrimSpace(contentEncoding))
	if len(data) == 0 || enc == "" || enc == "identity" {
		return data
	}

	var r io.Reader
	switch {
	case strings.Contains(enc, "gzip"):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			log.Debugf("gzip decode failed, keeping raw body: %v", err)
			return data
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case strings.Contains(enc, "deflate"):
		// Most servers send zlib-wrapped deflate; a few send it raw.
		if zr, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
			defer func() { _ = zr.Close() }()
			r = zr
		} else {
			fr := flate.NewReader(bytes.NewReader(data))
			defer func() { _ = fr.Close() }()
			r = fr
		}
	case strings.Contains(enc, "br"):
		r = brotli.NewReader(bytes.NewReader(data))
	default:
		log.Debugf("Unsupported Content-Encoding %q, keeping raw body", enc)
		return data
	}

	out, err := io.ReadAll(r)
	if err != nil {
		log.Debugf("%s decode failed, keeping raw body: %v", enc, err)
		return data
	}
	return out
}

// Document parses the page, honouring the declared or sniffed charset.
func (p *Page) Document() (*goquery.Document, error) {
	r, err := charset.NewReader(bytes.NewReader(p.Body), p.ContentType)
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}
