package main

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/nestrader/config"
	"github.com/alejandrodnm/nestrader/internal/adapters/marketdata"
	"github.com/alejandrodnm/nestrader/internal/domain"
	"github.com/alejandrodnm/nestrader/internal/ports"
)

// loadBars construye la fuente configurada y descarga la serie completa.
func loadBars(ctx context.Context, cfg *config.Config) ([]domain.Bar, error) {
	provider, err := barProvider(cfg.Data)
	if err != nil {
		return nil, err
	}
	bars, err := provider.FetchBars(ctx)
	if err != nil {
		return nil, err
	}
	if len(bars) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 valid bars, got %d", domain.ErrConfiguration, len(bars))
	}
	return bars, nil
}

func barProvider(cfg config.DataConfig) (ports.BarProvider, error) {
	switch cfg.Source {
	case config.SourceCSV:
		return marketdata.NewCSVSource(cfg.CSVPath), nil
	case config.SourceHTTP:
		return marketdata.NewClient(marketdata.ClientConfig{
			BaseURL:  cfg.API.BaseURL,
			APIKey:   cfg.API.APIKey,
			Symbol:   cfg.API.Symbol,
			Interval: cfg.API.Interval,
			Limit:    cfg.API.Limit,
		}), nil
	case config.SourceSynthetic:
		src, err := marketdata.NewSynthetic(marketdata.SyntheticConfig{
			Bars:       cfg.Synthetic.Bars,
			StartPrice: cfg.Synthetic.StartPrice,
			Drift:      cfg.Synthetic.Drift,
			Volatility: cfg.Synthetic.Volatility,
			Seed:       cfg.Synthetic.Seed,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("%w: unknown data source %q", domain.ErrConfiguration, cfg.Source)
	}
}
