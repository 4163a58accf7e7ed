package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del simulador de carrera.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Prices     PricesConfig     `yaml:"prices"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

// SimulationConfig controla los defaults del motor de turnos.
type SimulationConfig struct {
	DefaultCapital    float64 `yaml:"default_capital"`
	DefaultDifficulty string  `yaml:"default_difficulty"` // principiante | intermedio | experto
	DefaultBenchmark  string  `yaml:"default_benchmark"`
	MaxAssets         int     `yaml:"max_assets"`
}

// PricesConfig contiene el base URL y límites del proveedor de precios.
type PricesConfig struct {
	BaseURL        string `yaml:"base_url"`
	RatePerSec     int    `yaml:"rate_per_sec"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StorageConfig controla dónde se persisten las sesiones y el ranking.
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
// Si el archivo YAML no existe, defaults + env bastan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	case os.IsNotExist(err):
		// sin archivo de config: jugable con defaults
	default:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PriceTimeout devuelve el timeout HTTP del proveedor como time.Duration.
func (c *Config) PriceTimeout() time.Duration {
	return time.Duration(c.Prices.TimeoutSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("CAREER_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("PRICES_BASE_URL"); v != "" {
		cfg.Prices.BaseURL = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Simulation.DefaultCapital <= 0 {
		cfg.Simulation.DefaultCapital = 50000
	}
	if cfg.Simulation.DefaultDifficulty == "" {
		cfg.Simulation.DefaultDifficulty = "intermedio"
	}
	if cfg.Simulation.DefaultBenchmark == "" {
		cfg.Simulation.DefaultBenchmark = "^SPX"
	}
	if cfg.Simulation.MaxAssets <= 0 {
		cfg.Simulation.MaxAssets = 10
	}
	if cfg.Prices.BaseURL == "" {
		cfg.Prices.BaseURL = "https://stooq.com"
	}
	if cfg.Prices.RatePerSec <= 0 {
		cfg.Prices.RatePerSec = 5
	}
	if cfg.Prices.TimeoutSeconds <= 0 {
		cfg.Prices.TimeoutSeconds = 10
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "career.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
