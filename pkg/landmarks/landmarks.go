// Package landmarks reads landmark tables: rows of a name, an active flag,
// then the moving point followed by the target point.
//
//	"Pt-0","true","12.5","40.0","110.0","38.2"
//
// The number of dimensions follows from the column count, 2*n + 2.
package landmarks

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrMalformed is returned for rows that are not landmark records.
	ErrMalformed = errors.New("landmarks: malformed table")

	// ErrNoLandmarks is returned when a table holds no usable points.
	ErrNoLandmarks = errors.New("landmarks: no landmarks")
)

// Landmark is a pair of corresponding points.
type Landmark struct {
	Name   string
	Active bool
	Moving []float64
	Target []float64
}

// Table is an ordered list of landmarks of one dimensionality.
type Table struct {
	NumDims   int
	Landmarks []Landmark
}

// Load reads the table at path.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open landmarks: %w", err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Read parses a landmark table.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	t := &Table{}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if len(rec) < 4 || len(rec)%2 != 0 {
			return nil, fmt.Errorf("%w: line %d has %d columns", ErrMalformed, line, len(rec))
		}
		n := (len(rec) - 2) / 2
		if t.NumDims == 0 {
			t.NumDims = n
		} else if n != t.NumDims {
			return nil, fmt.Errorf("%w: line %d is %dD, table is %dD", ErrMalformed, line, n, t.NumDims)
		}

		lm := Landmark{Name: rec[0]}
		lm.Active, err = strconv.ParseBool(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d active flag: %w", ErrMalformed, line, err)
		}
		coords := make([]float64, 2*n)
		for i, s := range rec[2:] {
			coords[i], err = strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %w", ErrMalformed, line, i+3, err)
			}
		}
		lm.Moving, lm.Target = coords[:n:n], coords[n:]
		t.Landmarks = append(t.Landmarks, lm)
	}
	return t, nil
}

// Points returns the moving or the target points, optionally restricted to
// the active landmarks.
func (t *Table) Points(moving, activeOnly bool) ([][]float64, error) {
	var pts [][]float64
	for _, lm := range t.Landmarks {
		if activeOnly && !lm.Active {
			continue
		}
		if moving {
			pts = append(pts, lm.Moving)
		} else {
			pts = append(pts, lm.Target)
		}
	}
	if len(pts) == 0 {
		return nil, ErrNoLandmarks
	}
	return pts, nil
}

// Write stores the table in the format Read accepts.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	for _, lm := range t.Landmarks {
		rec := []string{lm.Name, strconv.FormatBool(lm.Active)}
		for _, v := range append(append([]float64(nil), lm.Moving...), lm.Target...) {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
