// Package export writes and reads the merged table as CSV, JSON or Parquet, optionally
// gzip-compressed.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/pgzip"

	"solar-impact-insights/dataset"
)

// Format is a file encoding of the table.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// ErrUnknownFormat is returned for an unsupported format name or file extension.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat maps a format name onto a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatCSV, FormatJSON, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ContentType returns the HTTP media type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv"
	}
}

// FormatFromPath derives the format from a file name. A trailing ".gz" marks gzip compression.
func FormatFromPath(path string) (Format, bool, error) {
	name := strings.ToLower(filepath.Base(path))
	gz := strings.HasSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".gz")
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(name), "."))
	return f, gz, err
}

// Write encodes t onto w.
func Write(w io.Writer, t *dataset.Table, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatJSON:
		return WriteJSON(w, t)
	case FormatParquet:
		return WriteParquet(w, t)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Read decodes a table from r.
func Read(r io.Reader, f Format) (*dataset.Table, error) {
	switch f {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSON:
		return ReadJSON(r)
	case FormatParquet:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return ReadParquet(bytes.NewReader(data), int64(len(data)))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// WriteFile writes t to path in the format named by its extension.
func WriteFile(path string, t *dataset.Table) (err error) {
	f, gz, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	if !gz {
		return Write(file, t, f)
	}
	zw := pgzip.NewWriter(file)
	if err := Write(zw, t, f); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadFile reads a table from path in the format named by its extension.
func ReadFile(path string) (*dataset.Table, error) {
	f, gz, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if !gz {
		if f == FormatParquet {
			info, err := file.Stat()
			if err != nil {
				return nil, err
			}
			return ReadParquet(file, info.Size())
		}
		return Read(file, f)
	}

	zr, err := pgzip.NewReaderN(file, 256*1024, runtime.NumCPU())
	if err != nil {
		return nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	defer zr.Close()
	return Read(zr, f)
}
