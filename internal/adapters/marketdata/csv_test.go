package marketdata_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/nestrader/internal/adapters/marketdata"
)

func TestReadCSV(t *testing.T) {
	in := "date,open,high,low,close,volume\n" +
		"2020-01-02,10,11,9,10.5,1000\n" +
		"2020-01-03T00:00:00Z, 10.5, 12, 10, 11.5, 1200\n"

	bars, err := marketdata.ReadCSV(strings.NewReader(in))

	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2, bars[0].Time.Day())
	assert.InDelta(t, 12.0, bars[1].High, 1e-9)
	assert.InDelta(t, 1200.0, bars[1].Volume, 1e-9)
}

func TestReadCSV_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"header only":  "date,open,high,low,close,volume\n",
		"bad header":   "time,open,high,low,close,volume\n2020-01-02,1,1,1,1,1\n",
		"bad number":   "date,open,high,low,close,volume\n2020-01-02,x,1,1,1,1\n",
		"bad date":     "date,open,high,low,close,volume\n02/01/2020,1,1,1,1,1\n",
		"short record": "date,open,high,low,close,volume\n2020-01-02,1,1,1,1\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := marketdata.ReadCSV(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestReadCSV_WithoutHeader(t *testing.T) {
	bars, err := marketdata.ReadCSV(strings.NewReader("2020-01-02,10,11,9,10.5,1000\n"))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.InDelta(t, 10.5, bars[0].Close, 1e-9)
}

func TestCSVSource_SortsAndDropsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	content := "date,open,high,low,close,volume\n" +
		"2020-01-03,11,12,10,11.5,1200\n" +
		"2020-01-02,10,11,9,10.5,1000\n" +
		"2020-01-04,11.5,12,11,11.8,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	bars, err := marketdata.NewCSVSource(path).FetchBars(context.Background())

	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2, bars[0].Time.Day())
	assert.Equal(t, 3, bars[1].Time.Day())
}

func TestCSVSource_MissingFile(t *testing.T) {
	_, err := marketdata.NewCSVSource(filepath.Join(t.TempDir(), "nope.csv")).FetchBars(context.Background())
	assert.Error(t, err)
}
