// Package config loads the flat key=value configuration file:
// "#"-prefixed comments, unknown keys silently ignored for
// forward-compatibility, validated against the required fields with
// go-playground/validator, and gated by an optional schema-version check
// against Masterminds/semver.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
)

// SchemaConstraint is the semver range of config.version this binary
// accepts. Bump alongside any breaking change to the recognized key set.
const SchemaConstraint = ">= 1.0.0, < 2.0.0"

// Endpoints holds the transport endpoint defaults, one per logical
// channel, each overridable via its key=value entry.
type Endpoints struct {
	MarketData        string `validate:"required"`
	Signals           string `validate:"required"`
	Executions        string `validate:"required"`
	Positions         string `validate:"required"`
	Logger            string `validate:"required"`
	Metrics           string `validate:"required"`
	MetricsAggregator string `validate:"required"`
	Control           string `validate:"required"`
}

// DefaultEndpoints matches the in-process ring:// scheme so a config file
// with no endpoint overrides still runs standalone.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		MarketData:        "ring://market-data",
		Signals:           "ring://signals",
		Executions:        "ring://executions",
		Positions:         "ring://positions",
		Logger:            "ring://logger",
		Metrics:           "ring://metrics",
		MetricsAggregator: "ring://metrics-aggregator",
		Control:           "ring://control",
	}
}

// Trading holds trading.* and mock_data.* keys.
type Trading struct {
	Enabled        bool
	PaperMode      bool
	MockDataHz     float64 `validate:"gte=0"`
}

// Risk holds risk.* keys, mapped 1:1 onto internal/risk.Limits.
type Risk struct {
	MaxPositionValue       float64 `validate:"gte=0"`
	MaxDailyLoss           float64 `validate:"gte=0"`
	PositionLimitPerSymbol uint32
}

// Momentum holds strategy.momentum.* keys.
type Momentum struct {
	Threshold         float64 `validate:"gte=0"`
	MinSignalIntervalMs int64 `validate:"gte=0"`
}

// Config is the fully parsed and validated configuration.
type Config struct {
	Version  string
	Endpoints Endpoints
	Trading  Trading
	Risk     Risk
	Momentum Momentum

	// Raw holds every key=value pair actually present in the file,
	// including broker-specific credentials and any other key this
	// struct doesn't model explicitly. Unknown keys are preserved,
	// not just ignored at parse time.
	Raw map[string]string
}

var validate = validator.New()

// Default returns the configuration used when no config file is present:
// in-process ring endpoints, paper trading enabled, stock momentum
// tuning, no risk limits.
func Default() *Config {
	return &Config{
		Endpoints: DefaultEndpoints(),
		Trading:   Trading{Enabled: true, PaperMode: true},
		Momentum:  Momentum{Threshold: 0.001, MinSignalIntervalMs: 1000},
		Raw:       map[string]string{},
	}
}

// Load reads and validates a config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	raw := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		raw[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{
		Endpoints: DefaultEndpoints(),
		Raw:       raw,
	}

	if v, ok := raw["config.version"]; ok {
		if err := checkSchemaVersion(v); err != nil {
			return nil, err
		}
		cfg.Version = v
	}

	applyEndpoint(raw, "market_data.endpoint", &cfg.Endpoints.MarketData)
	applyEndpoint(raw, "signals.endpoint", &cfg.Endpoints.Signals)
	applyEndpoint(raw, "executions.endpoint", &cfg.Endpoints.Executions)
	applyEndpoint(raw, "positions.endpoint", &cfg.Endpoints.Positions)
	applyEndpoint(raw, "logger.endpoint", &cfg.Endpoints.Logger)
	applyEndpoint(raw, "metrics.endpoint", &cfg.Endpoints.Metrics)
	applyEndpoint(raw, "metrics_aggregator.endpoint", &cfg.Endpoints.MetricsAggregator)
	applyEndpoint(raw, "control.endpoint", &cfg.Endpoints.Control)

	cfg.Trading.Enabled = parseBool(raw, "trading.enabled", true)
	cfg.Trading.PaperMode = parseBool(raw, "trading.paper_mode", true)
	cfg.Trading.MockDataHz = parseFloat(raw, "mock_data.frequency_hz", 0)

	cfg.Risk.MaxPositionValue = parseFloat(raw, "risk.max_position_value", 0)
	cfg.Risk.MaxDailyLoss = parseFloat(raw, "risk.max_daily_loss", 0)
	cfg.Risk.PositionLimitPerSymbol = uint32(parseFloat(raw, "risk.position_limit_per_symbol", 0))

	cfg.Momentum.Threshold = parseFloat(raw, "strategy.momentum.threshold", 0.001)
	cfg.Momentum.MinSignalIntervalMs = int64(parseFloat(raw, "strategy.momentum.min_signal_interval_ms", 1000))

	if err := validate.Struct(&cfg.Endpoints); err != nil {
		return nil, fmt.Errorf("config: invalid endpoints: %w", err)
	}
	if err := validate.Struct(&cfg.Trading); err != nil {
		return nil, fmt.Errorf("config: invalid trading section: %w", err)
	}
	if err := validate.Struct(&cfg.Risk); err != nil {
		return nil, fmt.Errorf("config: invalid risk section: %w", err)
	}
	if err := validate.Struct(&cfg.Momentum); err != nil {
		return nil, fmt.Errorf("config: invalid momentum section: %w", err)
	}

	return cfg, nil
}

func checkSchemaVersion(v string) error {
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("config: config.version %q is not valid semver: %w", v, err)
	}
	constraint, err := semver.NewConstraint(SchemaConstraint)
	if err != nil {
		return fmt.Errorf("config: internal schema constraint invalid: %w", err)
	}
	if !constraint.Check(ver) {
		return fmt.Errorf("config: config.version %q does not satisfy %q", v, SchemaConstraint)
	}
	return nil
}

func applyEndpoint(raw map[string]string, key string, dst *string) {
	if v, ok := raw[key]; ok && v != "" {
		*dst = v
	}
}

func parseBool(raw map[string]string, key string, def bool) bool {
	v, ok := raw[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func parseFloat(raw map[string]string, key string, def float64) float64 {
	v, ok := raw[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
