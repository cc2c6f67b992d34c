package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

// Fuentes de velas soportadas.
const (
	SourceCSV       = "csv"
	SourceHTTP      = "http"
	SourceSynthetic = "synthetic"
)

// Config es la configuración completa del trainer.
type Config struct {
	Training  TrainingConfig  `yaml:"training"`
	Model     ModelConfig     `yaml:"model"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Data      DataConfig      `yaml:"data"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// TrainingConfig controla el optimizador y la evaluación paralela.
type TrainingConfig struct {
	Sigma          float64 `yaml:"sigma"`
	LearningRate   float64 `yaml:"learning_rate"`
	PopulationSize int     `yaml:"population_size"`
	Iterations     int     `yaml:"iterations"`
	ReportInterval int     `yaml:"report_interval"` // negativo desactiva reportes y checkpoints
	Workers        int     `yaml:"workers"`         // 0 = NumCPU
	Seed           uint64  `yaml:"seed"`            // 0 = semilla por tiempo
	MaxSteps       int     `yaml:"max_steps"`       // tope de pasos por episodio, 0 = sin tope
}

// ModelConfig describe la función de scoring.
type ModelConfig struct {
	TimeFrame int `yaml:"time_frame"` // pasos en la ventana de features
	Hidden    int `yaml:"hidden"`
	MaxShares int `yaml:"max_shares"`
}

// SimulatorConfig controla el entorno de trading.
type SimulatorConfig struct {
	InitialCash float64 `yaml:"initial_cash"`
	FeeRate     float64 `yaml:"fee_rate"`
}

// DataConfig elige de dónde salen las velas.
type DataConfig struct {
	Source    string          `yaml:"source"` // csv | http | synthetic
	CSVPath   string          `yaml:"csv_path"`
	API       APIConfig       `yaml:"api"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
}

// APIConfig es el endpoint HTTP de velas.
type APIConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"-"` // solo desde MARKETDATA_API_KEY
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
	Limit    int    `yaml:"limit"`
}

// SyntheticConfig parametriza el generador de velas para dry runs.
type SyntheticConfig struct {
	Bars       int      `yaml:"bars"`
	StartPrice float64  `yaml:"start_price"`
	Drift      float64  `yaml:"drift"`
	Volatility *float64 `yaml:"volatility"` // sin valor usa el default del generador
	Seed       uint64   `yaml:"seed"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	return &cfg, nil
}

// StateSize es el número de features por paso: la observación cruda menos
// shares, cash y time.
func (c *Config) StateSize() int {
	return domain.RawObservationWidth - domain.NonMarketFields
}

// Validate rechaza configuraciones con las que no se puede entrenar.
func (c *Config) Validate() error {
	t := c.Training
	switch {
	case !(t.Sigma > 0):
		return fmt.Errorf("config: %w: training.sigma must be positive", domain.ErrConfiguration)
	case !(t.LearningRate > 0):
		return fmt.Errorf("config: %w: training.learning_rate must be positive", domain.ErrConfiguration)
	case t.PopulationSize < 2:
		return fmt.Errorf("config: %w: training.population_size must be at least 2", domain.ErrConfiguration)
	case t.Iterations < 0, t.Workers < 0, t.MaxSteps < 0:
		return fmt.Errorf("config: %w: training counters cannot be negative", domain.ErrConfiguration)
	}

	m := c.Model
	if m.TimeFrame <= 0 || m.Hidden <= 0 || m.MaxShares <= 0 {
		return fmt.Errorf("config: %w: model.time_frame, model.hidden and model.max_shares must be positive", domain.ErrConfiguration)
	}
	if c.Simulator.InitialCash <= 0 || c.Simulator.FeeRate < 0 {
		return fmt.Errorf("config: %w: simulator.initial_cash must be positive and fee_rate non-negative", domain.ErrConfiguration)
	}

	switch c.Data.Source {
	case SourceCSV:
		if c.Data.CSVPath == "" {
			return fmt.Errorf("config: %w: data.csv_path is required for source %q", domain.ErrConfiguration, SourceCSV)
		}
	case SourceHTTP:
		if c.Data.API.Symbol == "" {
			return fmt.Errorf("config: %w: data.api.symbol is required for source %q", domain.ErrConfiguration, SourceHTTP)
		}
	case SourceSynthetic:
		if c.Data.Synthetic.Bars < 2 {
			return fmt.Errorf("config: %w: data.synthetic.bars must be at least 2", domain.ErrConfiguration)
		}
		if v := c.Data.Synthetic.Volatility; v != nil && *v < 0 {
			return fmt.Errorf("config: %w: data.synthetic.volatility cannot be negative", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("config: %w: unknown data.source %q", domain.ErrConfiguration, c.Data.Source)
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		cfg.Data.API.APIKey = v
	}
	if v := os.Getenv("NES_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("NES_SEED: %w", err)
		}
		cfg.Training.Seed = seed
	}
	if v := os.Getenv("NES_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NES_WORKERS: %w", err)
		}
		cfg.Training.Workers = workers
	}
	return nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Training.Sigma == 0 {
		cfg.Training.Sigma = 0.1
	}
	if cfg.Training.LearningRate == 0 {
		cfg.Training.LearningRate = 0.03
	}
	if cfg.Training.PopulationSize == 0 {
		cfg.Training.PopulationSize = 15
	}
	if cfg.Training.Iterations == 0 {
		cfg.Training.Iterations = 500
	}
	if cfg.Training.ReportInterval == 0 {
		cfg.Training.ReportInterval = 10
	}
	if cfg.Model.TimeFrame == 0 {
		cfg.Model.TimeFrame = 30
	}
	if cfg.Model.Hidden == 0 {
		cfg.Model.Hidden = 500
	}
	if cfg.Model.MaxShares == 0 {
		cfg.Model.MaxShares = 100
	}
	if cfg.Simulator.InitialCash == 0 {
		cfg.Simulator.InitialCash = 10000
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = SourceCSV
	}
	if cfg.Data.API.Interval == "" {
		cfg.Data.API.Interval = "1d"
	}
	if cfg.Data.Synthetic.Bars == 0 {
		cfg.Data.Synthetic.Bars = 250
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "nestrader.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
