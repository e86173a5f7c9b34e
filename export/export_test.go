package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-impact-insights/dataset"
)

func sampleTable(t *testing.T) *dataset.Table {
	t.Helper()
	day := func(i int) time.Time {
		return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	records := []dataset.Record{
		{Date: day(0), SEPIntensity: 1.25, Temperature: dataset.Float(14.1), KpIndex: dataset.Float(3), Cluster: dataset.Int(0)},
		{Date: day(1), SEPIntensity: 0.1 + 0.2, KpIndex: dataset.Float(7.33), Cluster: dataset.Int(2)},
		{Date: day(2), SEPIntensity: 6.5, Temperature: dataset.Float(-0.5)},
	}
	table, err := dataset.NewTable([]dataset.Column{dataset.Temperature, dataset.KpIndex}, records)
	require.NoError(t, err)
	return table
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatCSV, FormatJSON, FormatParquet} {
		t.Run(string(f), func(t *testing.T) {
			table := sampleTable(t)

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, table, f))

			got, err := Read(&buf, f)
			require.NoError(t, err)
			assert.True(t, table.Equal(got), "round trip changed the table: %+v", got)
		})
	}
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.csv", "out.json", "out.parquet", "out.csv.gz", "out.json.gz", "out.parquet.gz"} {
		t.Run(name, func(t *testing.T) {
			table := sampleTable(t)
			path := filepath.Join(dir, name)

			require.NoError(t, WriteFile(path, table))
			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.True(t, table.Equal(got))
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "date,sep_intensity,temperature,kp_index,cluster", lines[0])
	assert.Equal(t, "2024-03-01,1.25,14.1,3,0", lines[1])
	assert.Equal(t, "2024-03-02,0.30000000000000004,,7.33,2", lines[2])
	assert.Equal(t, "2024-03-03,6.5,-0.5,,", lines[3])
}

func TestWriteCSVWithoutClusters(t *testing.T) {
	table := sampleTable(t)
	for i := range table.Records {
		table.Records[i].Cluster = nil
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))
	assert.True(t, strings.HasPrefix(buf.String(), "date,sep_intensity,temperature,kp_index\n"))
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		isErr error
	}{
		{name: "unknown column", input: "date,sep_intensity,humidity\n2024-01-01,1,2\n", isErr: dataset.ErrUnknownColumn},
		{name: "no date header", input: "day,sep_intensity\n2024-01-01,1\n"},
		{name: "missing primary", input: "date,sep_intensity,temperature\n2024-01-01,,2\n"},
		{name: "bad number", input: "date,sep_intensity\n2024-01-01,abc\n"},
		{name: "bad date", input: "date,sep_intensity\nyesterday,1\n"},
		{name: "bad cluster", input: "date,sep_intensity,cluster\n2024-01-01,1,x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			if tt.isErr != nil {
				assert.ErrorIs(t, err, tt.isErr)
			}
		})
	}
}

func TestReadCSVNonFiniteCells(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("date,sep_intensity,kp_index\n2024-01-01,1,NaN\n2024-01-02,2,3\n"))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Nil(t, table.Records[0].KpIndex)
	assert.Equal(t, 3.0, *table.Records[1].KpIndex)

	_, err = ReadCSV(strings.NewReader("date,sep_intensity\n2024-01-01,NaN\n"))
	assert.Error(t, err, "a NaN primary is missing")
}

func TestReadJSON(t *testing.T) {
	input := `[
		{"date": "2024-01-02", "sep_intensity": 2.5, "temperature": null, "ice_extent": 9000, "ozone_level": null, "kp_index": null},
		{"date": "2024-01-03", "sep_intensity": 1.0, "temperature": null, "ice_extent": null, "ozone_level": null, "kp_index": null}
	]`
	table, err := ReadJSON(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []dataset.Column{dataset.IceExtent}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, 1, table.Missing(dataset.IceExtent))

	_, err = ReadJSON(strings.NewReader(`[{"date": "2024-01-02", "sep_intensity": 1, "wind": 3}]`))
	assert.ErrorIs(t, err, dataset.ErrUnknownColumn)
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, &dataset.Table{}))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		format  Format
		gzipped bool
		wantErr bool
	}{
		{path: "data/merged.csv", format: FormatCSV},
		{path: "MERGED.JSON", format: FormatJSON},
		{path: "/tmp/x.parquet.gz", format: FormatParquet, gzipped: true},
		{path: "table.xlsx", wantErr: true},
		{path: "table", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f, gz, err := FormatFromPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, f)
			assert.Equal(t, tt.gzipped, gz)
		})
	}
}
