package result

import (
	"fmt"
	"io"
	"time"

	"github.com/lukemcguire/sitecapture/asset"
)

// PrintResult writes a plain-text summary of a run to w. report may be nil.
func PrintResult(w io.Writer, res *Result, report *Report) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	writef("Mirrored %q into %s\n", res.ProductName, res.Folder)
	for _, c := range asset.Categories {
		writef("  %-10s %d\n", c, res.Counts[c])
	}

	if report != nil {
		tally := report.Tally()
		writef("Saved %d, failed %d, cancelled %d\n",
			tally[StatusSaved], tally[StatusFailed], tally[StatusCancelled])
		for _, a := range report.Assets {
			if a.Status != StatusFailed {
				continue
			}
			if a.StatusCode != 0 {
				writef("  FAILED %s (%d)\n", a.URL, a.StatusCode)
			} else {
				writef("  FAILED %s (%s)\n", a.URL, FormatCategory(a.ErrorCategory))
			}
		}
	}
	writef("Discovered %d assets in %s\n", res.Total(), res.Duration.Round(time.Millisecond))
}
