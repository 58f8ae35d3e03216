package links

import (
	"encoding/csv"
	"strings"
)

// Row is one line of the links export
type Row struct {
	Giver string
	Email string
	Link  string
}

// ExportCSV writes the links export with a Giver,Email,Link header. Fields are
// quoted as needed, so commas or quotes in names never shift columns.
func ExportCSV(rows []Row) (string, error) {
	var out strings.Builder
	writer := csv.NewWriter(&out)
	if err := writer.Write([]string{"Giver", "Email", "Link"}); err != nil {
		return "", err
	}
	for _, r := range rows {
		if err := writer.Write([]string{r.Giver, r.Email, r.Link}); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return out.String(), nil
}

// Rows pairs encoded links with their options for export. Entries whose
// link failed to encode are skipped.
func Rows(batch []Options, encoded []string) []Row {
	rows := make([]Row, 0, len(batch))
	for i, opts := range batch {
		if i >= len(encoded) || encoded[i] == "" {
			continue
		}
		rows = append(rows, Row{Giver: opts.Giver, Email: opts.GiverEmail, Link: encoded[i]})
	}
	return rows
}
