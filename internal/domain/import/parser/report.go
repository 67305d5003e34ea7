package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
)

// RejectedReportRow is one line of the rejected-rows report.
type RejectedReportRow struct {
	Line   int    `csv:"line"`
	Reason string `csv:"reason"`
	Raw    string `csv:"raw"`
}

// WriteRejectedReport writes rejected rows as CSV so they can be fixed and
// re-imported by hand.
func WriteRejectedReport(w io.Writer, rejected []normalizer.RejectedRow) error {
	rows := make([]*RejectedReportRow, 0, len(rejected))
	for _, r := range rejected {
		rows = append(rows, &RejectedReportRow{
			Line:   r.Line,
			Reason: r.Reason,
			Raw:    formatRaw(r.Raw),
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write rejected rows: %w", err)
	}
	return nil
}

func formatRaw(fields []normalizer.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Column+"="+f.Value)
	}
	return strings.Join(parts, " | ")
}
