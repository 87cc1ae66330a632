package ramp

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ReadListCSV reads scan counts and voltages for an ExplicitList ramp.  The
// first row is a header; the first column holds scans per voltage and the
// second the collision voltage.  Empty cells read as 0.
func ReadListCSV(r io.Reader) ([]int, []float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, "read list csv")
	}
	if len(rows) < 2 {
		return nil, nil, errors.Wrap(ErrInvalidArguments, "list csv has no data rows")
	}
	var (
		counts []int
		volts  []float64
	)
	for i, row := range rows[1:] {
		line := i + 2
		if len(row) < 2 {
			return nil, nil, errors.Wrapf(ErrInvalidArguments, "line %d: expected SPV and CV columns, got %d", line, len(row))
		}
		spv, err := cell(row[0])
		if err != nil {
			return nil, nil, errors.Wrapf(ErrInvalidArguments, "line %d: SPV %q", line, row[0])
		}
		cv, err := cell(row[1])
		if err != nil {
			return nil, nil, errors.Wrapf(ErrInvalidArguments, "line %d: CV %q", line, row[1])
		}
		counts = append(counts, int(spv))
		volts = append(volts, cv)
	}
	return counts, volts, nil
}

func cell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// LoadListCSV reads an ExplicitList CSV file from disk
func LoadListCSV(path string) ([]int, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadListCSV(f)
}
