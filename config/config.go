// Package config holds scraper configuration and window URL building.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/eordo/transfermarkt-data/models"
)

// Config holds one scraping run's configuration. Values are set once at
// startup and never mutated afterwards; URL building is a pure function of
// the config (see WindowURL).
type Config struct {
	// BaseURL is the site root. Only the international site is supported.
	BaseURL string
	// League is Transfermarkt's identifier for the league name,
	// e.g. "premier-league".
	League string
	// Level is the league's code in its national pyramid, e.g. "GB1".
	Level string
	// Season is the year in which the league season begins.
	Season int
	// Windows lists the transfer windows to scrape.
	Windows []models.Window

	Parallelism     int
	Delay           time.Duration
	RandomDelay     time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	// UserAgents is the pool rotated across requests and retries.
	UserAgents []string

	PipelineBufferSize int
	BatchSize          int
	// DedupeMaxSize bounds the record fingerprint cache.
	DedupeMaxSize int
	// DropBadRows drops rows that fail type coercion instead of aborting
	// the run. Dropped rows are logged and counted, never silent.
	DropBadRows bool

	OutputFile   string
	OutputFormat string // csv, json, or dual
	MetricsAddr  string
	Verbose      bool
}

// DefaultConfig returns defaults matching the English Premier League,
// 2024-25 season, both windows.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://www.transfermarkt.com",
		League:      "premier-league",
		Level:       "GB1",
		Season:      2024,
		Windows:     []models.Window{models.WindowSummer, models.WindowWinter},
		Parallelism: 2,
		Delay:       500 * time.Millisecond,
		RandomDelay: 500 * time.Millisecond,
		Timeout:     30 * time.Second,
		MaxRetries:  3,

		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/115.0.0.0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15) Firefox/113.0",
			"Mozilla/5.0 (X11; Linux x86_64) Chrome/113.0.0.0",
		},

		PipelineBufferSize: 512,
		BatchSize:          64,
		DedupeMaxSize:      10000,
		DropBadRows:        false,

		OutputFile:   "data/2024.csv",
		OutputFormat: "csv",
		Verbose:      false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.League == "" {
		return fmt.Errorf("league cannot be empty")
	}
	if c.Level == "" {
		return fmt.Errorf("league level cannot be empty")
	}
	if c.Season <= 0 {
		return fmt.Errorf("season must be a year")
	}
	if len(c.Windows) == 0 {
		return fmt.Errorf("at least one transfer window is required")
	}
	for _, w := range c.Windows {
		if w != models.WindowSummer && w != models.WindowWinter {
			return fmt.Errorf("unknown transfer window %q", w)
		}
	}

	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if len(c.UserAgents) == 0 {
		return fmt.Errorf("at least one user agent is required")
	}

	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}

	return nil
}

// WindowURL builds the transfers page URL for one season and window.
// Query keys are in German on the source site. Loans are included
// (leihe=3) and intra-club movements excluded (intern=0), matching the
// published transfer summaries.
func (c *Config) WindowURL(season int, window models.Window) string {
	query := url.Values{}
	query.Set("saison_id", strconv.Itoa(season))
	query.Set("s_w", window.QueryCode())
	query.Set("leihe", "3")
	query.Set("intern", "0")
	return fmt.Sprintf("%s/%s/transfers/wettbewerb/%s/plus/?%s",
		c.BaseURL, c.League, c.Level, query.Encode())
}

// EnvInt reads an integer environment variable. The second return reports
// whether the variable was set.
func EnvInt(key string) (int, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable.
func EnvString(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
