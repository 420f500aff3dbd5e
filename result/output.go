package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects a report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the report format from a file extension, defaulting
// to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Write encodes the report in the given format.
func Write(w io.Writer, report *Report, format Format) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, report.Assets)
	case FormatYAML:
		return WriteYAML(w, report)
	default:
		return WriteJSON(w, report)
	}
}

// WriteJSON writes the report as indented JSON. URLs are not HTML-escaped.
func WriteJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteYAML writes the report as YAML.
func WriteYAML(w io.Writer, report *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write yaml output: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush yaml output: %w", err)
	}
	return nil
}

// WriteCSV writes one row per asset outcome.
// Always includes a header row, even if there are no outcomes.
// Column order: category, url, status, path, bytes, status_code, error_type, from_stylesheet
func WriteCSV(w io.Writer, assets []AssetOutcome) error {
	cw := csv.NewWriter(w)

	header := []string{"category", "url", "status", "path", "bytes", "status_code", "error_type", "from_stylesheet"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, a := range assets {
		record := []string{
			string(a.Category),
			a.URL,
			string(a.Status),
			a.Path,
			strconv.FormatInt(a.Bytes, 10),
			statusCodeStr(a.StatusCode),
			string(a.ErrorCategory),
			strconv.FormatBool(a.Stylesheet),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", a.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// statusCodeStr converts an HTTP status code to a string.
// Returns empty string for 0 (no HTTP status).
func statusCodeStr(code int) string {
	if code == 0 {
		return ""
	}
	return strconv.Itoa(code)
}
