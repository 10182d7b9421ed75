// Package models defines data structures for the transfer scraper.
package models

import "time"

// Window identifies a transfer window.
type Window string

const (
	WindowSummer Window = "summer"
	WindowWinter Window = "winter"
)

// QueryCode returns the single-letter window code used in Transfermarkt URLs.
func (w Window) QueryCode() string {
	if w == WindowWinter {
		return "w"
	}
	return "s"
}

// Movement identifies the direction of a transfer relative to a club.
type Movement string

const (
	MovementIn  Movement = "in"
	MovementOut Movement = "out"
)

// RawTransfer is one transfer record as scraped, before type coercion.
// All fields hold the original cell text; the club, movement, and window
// tags are attached by the normalizer.
type RawTransfer struct {
	Club           string
	Movement       Movement
	Window         Window
	PlayerName     string
	PlayerID       string
	Age            string
	Nationality    string
	Position       string
	MarketValue    string
	DealingClub    string
	DealingCountry string
	Fee            string
}

// Transfer is one cleaned transfer record in the canonical schema.
// MarketValue is nil when the site records it as unknown; Fee is never
// negative and defaults to 0 when no fee can be derived.
type Transfer struct {
	Club           string   `csv:"club" json:"club"`
	Movement       Movement `csv:"movement" json:"movement"`
	Window         Window   `csv:"window" json:"window"`
	PlayerName     string   `csv:"player_name" json:"player_name"`
	PlayerID       int      `csv:"player_id" json:"player_id"`
	Age            int      `csv:"age" json:"age"`
	Nationality    string   `csv:"nationality" json:"nationality"`
	Position       string   `csv:"position" json:"position"`
	MarketValue    *float64 `csv:"market_value" json:"market_value"`
	DealingClub    string   `csv:"dealing_club" json:"dealing_club"`
	DealingCountry string   `csv:"dealing_country" json:"dealing_country"`
	Fee            float64  `csv:"fee" json:"fee"`
	IsLoan         bool     `csv:"is_loan" json:"is_loan"`
}

// ScrapeResult holds the overall result of a scraping run.
type ScrapeResult struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
}
