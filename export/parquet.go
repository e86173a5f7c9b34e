package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"

	"solar-impact-insights/dataset"
)

// columnsKey holds the comma-separated companion list in the file's key/value metadata.
const columnsKey = "solar.columns"

type parquetRow struct {
	Date         string   `parquet:"date"`
	SEPIntensity float64  `parquet:"sep_intensity"`
	Temperature  *float64 `parquet:"temperature,optional"`
	IceExtent    *float64 `parquet:"ice_extent,optional"`
	OzoneLevel   *float64 `parquet:"ozone_level,optional"`
	KpIndex      *float64 `parquet:"kp_index,optional"`
	Cluster      *int32   `parquet:"cluster,optional"`
}

func rowFromRecord(r dataset.Record) parquetRow {
	row := parquetRow{
		Date:         r.Date.Format(dataset.DateLayout),
		SEPIntensity: r.SEPIntensity,
		Temperature:  r.Temperature,
		IceExtent:    r.IceExtent,
		OzoneLevel:   r.OzoneLevel,
		KpIndex:      r.KpIndex,
	}
	if r.Cluster != nil {
		k := int32(*r.Cluster)
		row.Cluster = &k
	}
	return row
}

func (row parquetRow) record() (dataset.Record, error) {
	date, err := dataset.ParseDate(row.Date)
	if err != nil {
		return dataset.Record{}, err
	}
	if !dataset.Finite(row.SEPIntensity) {
		return dataset.Record{}, fmt.Errorf("%s on %s is not a number", dataset.SEPIntensity, row.Date)
	}
	rec := dataset.Record{Date: date, SEPIntensity: row.SEPIntensity}
	for c, v := range map[dataset.Column]*float64{
		dataset.Temperature: row.Temperature,
		dataset.IceExtent:   row.IceExtent,
		dataset.OzoneLevel:  row.OzoneLevel,
		dataset.KpIndex:     row.KpIndex,
	} {
		if v != nil {
			rec.SetValue(c, *v)
		}
	}
	if row.Cluster != nil {
		rec.Cluster = dataset.Int(int(*row.Cluster))
	}
	return rec, nil
}

// WriteParquet writes one row per record. The declared companions are kept in the file metadata.
func WriteParquet(w io.Writer, t *dataset.Table) error {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.String()
	}

	pw := parquet.NewGenericWriter[parquetRow](w,
		parquet.KeyValueMetadata(columnsKey, strings.Join(names, ",")))

	rows := make([]parquetRow, len(t.Records))
	for i, r := range t.Records {
		rows[i] = rowFromRecord(r)
	}
	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	return pw.Close()
}

// ReadParquet reads a table written by WriteParquet. Files without column metadata fall back to
// the companions holding at least one value.
func ReadParquet(r io.ReaderAt, size int64) (*dataset.Table, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[parquetRow](pf)
	defer reader.Close()

	var records []dataset.Record
	buf := make([]parquetRow, 1000)
	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			rec, rerr := buf[i].record()
			if rerr != nil {
				return nil, fmt.Errorf("parquet row %d: %w", len(records), rerr)
			}
			records = append(records, rec)
		}
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
	}

	value, ok := pf.Lookup(columnsKey)
	if !ok {
		return dataset.NewTable(presentCompanions(records), records)
	}
	var cols []dataset.Column
	for _, name := range strings.Split(value, ",") {
		if name == "" {
			continue
		}
		c, err := dataset.ParseColumn(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return dataset.NewTable(cols, records)
}
