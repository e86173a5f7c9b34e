package export

import (
	"encoding/json"
	"fmt"
	"io"

	"solar-impact-insights/dataset"
)

// WriteJSON writes the table as an array of records. Absent companions are null.
func WriteJSON(w io.Writer, t *dataset.Table) error {
	records := t.Records
	if records == nil {
		records = []dataset.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ReadJSON reads an array of records. The table's companions are the columns holding at least
// one value, in canonical order.
func ReadJSON(r io.Reader) (*dataset.Table, error) {
	var records []dataset.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode JSON records: %w", err)
	}
	return dataset.NewTable(presentCompanions(records), records)
}

func presentCompanions(records []dataset.Record) []dataset.Column {
	var cols []dataset.Column
	for _, c := range dataset.Companions {
		for _, r := range records {
			if _, ok := r.Value(c); ok {
				cols = append(cols, c)
				break
			}
		}
	}
	return cols
}
