package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

var csvHeader = []string{"date", "open", "high", "low", "close", "volume"}

// Formatos de fecha aceptados en la columna date.
var dateLayouts = []string{time.DateOnly, time.RFC3339, "2006-01-02 15:04:05"}

// CSVSource lee velas de un fichero date,open,high,low,close,volume.
// Implementa ports.BarProvider.
type CSVSource struct {
	path string
}

// NewCSVSource crea un CSVSource para el fichero dado.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// FetchBars lee y sanea el fichero completo.
func (s *CSVSource) FetchBars(ctx context.Context) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("marketdata.CSVSource: %w", err)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("marketdata.CSVSource: %s: %w", s.path, err)
	}
	return Sanitize(bars), nil
}

// ReadCSV parsea velas desde r. La cabecera date,open,high,low,close,volume
// es opcional; si la primera fila no la trae se parsea como dato.
func ReadCSV(r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true

	var bars []domain.Bar
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && isHeader(rec) {
			continue
		}
		bar, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, errors.New("no bars in file")
	}
	return bars, nil
}

func isHeader(rec []string) bool {
	for i, want := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(rec[i]), want) {
			return false
		}
	}
	return true
}

func parseRecord(rec []string) (domain.Bar, error) {
	ts, err := parseDate(rec[0])
	if err != nil {
		return domain.Bar{}, err
	}
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("column %s: %w", csvHeader[i+1], err)
		}
		vals[i] = v
	}
	return domain.Bar{
		Time:   ts,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
