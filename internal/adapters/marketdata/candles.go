package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

const (
	candlesPath = "/candles"
	pageSize    = 500
)

// candlesResponse es la respuesta paginada de GET /candles.
type candlesResponse struct {
	Symbol     string   `json:"symbol"`
	NextCursor string   `json:"next_cursor"`
	Candles    []candle `json:"candles"`
}

// candle es una vela cruda; t en segundos unix.
type candle struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

// FetchBars descarga la serie completa paginando con next_cursor.
func (c *Client) FetchBars(ctx context.Context) ([]domain.Bar, error) {
	if c.cfg.Symbol == "" {
		return nil, fmt.Errorf("marketdata.FetchBars: %w: symbol is required", domain.ErrConfiguration)
	}

	var all []domain.Bar
	cursor := ""
	for {
		q := url.Values{}
		q.Set("symbol", c.cfg.Symbol)
		q.Set("interval", c.cfg.Interval)
		q.Set("limit", strconv.Itoa(pageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp candlesResponse
		if err := c.get(ctx, c.cfg.BaseURL+candlesPath+"?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("marketdata.FetchBars: %w", err)
		}
		all = append(all, mapCandles(resp.Candles)...)

		slog.Debug("fetched candles page",
			"symbol", c.cfg.Symbol,
			"count", len(resp.Candles),
			"total", len(all),
			"has_more", resp.NextCursor != "",
		)

		if resp.NextCursor == "" || (c.cfg.Limit > 0 && len(all) >= c.cfg.Limit) {
			break
		}
		cursor = resp.NextCursor
	}

	bars := Sanitize(all)
	if c.cfg.Limit > 0 && len(bars) > c.cfg.Limit {
		bars = bars[len(bars)-c.cfg.Limit:]
	}
	slog.Info("candles fetched", "symbol", c.cfg.Symbol, "bars", len(bars))
	return bars, nil
}

func mapCandles(raw []candle) []domain.Bar {
	bars := make([]domain.Bar, 0, len(raw))
	for _, k := range raw {
		bars = append(bars, domain.Bar{
			Time:   time.Unix(k.T, 0).UTC(),
			Open:   k.O,
			High:   k.H,
			Low:    k.L,
			Close:  k.C,
			Volume: k.V,
		})
	}
	return bars
}
