// Package export renders stored spends as CSV for the HTTP export
// endpoint and the spendctl export command.
package export

import (
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"spendbot/internal/core"
)

// Row is the CSV shape of one stored spend. Amounts render as plain
// decimal strings so the file loads into spreadsheets without locale
// surprises.
type Row struct {
	ID           int64  `csv:"id"`
	Day          string `csv:"day"`
	Cluster      string `csv:"cluster"`
	Amount       string `csv:"amount"`
	OriginID     int64  `csv:"origin_id"`
	MessageID    int64  `csv:"message_id"`
	CreatedAt    string `csv:"created_at"`
	MirrorStatus string `csv:"mirror_status"`
}

// NewRow converts a stored spend into its CSV row.
func NewRow(s core.StoredSpend) Row {
	return Row{
		ID:           s.ID,
		Day:          s.Day.String(),
		Cluster:      s.Cluster,
		Amount:       s.Amount.Decimal().StringFixed(2),
		OriginID:     s.OriginID,
		MessageID:    s.MessageID,
		CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
		MirrorStatus: s.MirrorStatus,
	}
}

// Write marshals the records to w as CSV, header included. An empty
// record set still produces the header line.
func Write(w io.Writer, records []core.StoredSpend) error {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, NewRow(rec))
	}
	return gocsv.Marshal(&rows, w)
}
