package export

import (
	"encoding/csv"
	"io"
)

// WriteCSV writes a header row plus records as comma-separated text.
func WriteCSV(w io.Writer, contents [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(contents); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
