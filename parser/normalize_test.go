package parser

import (
	"testing"

	"github.com/eordo/transfermarkt-data/models"
)

func TestNormalizeWindowTagsEveryRecord(t *testing.T) {
	doc := parseFixture(t, fixturePage(
		clubFixture{name: "Arsenal FC", in: []rowFixture{sampleRow()}, out: []rowFixture{sampleRow()}},
		clubFixture{name: "Chelsea FC", in: []rowFixture{sampleRow()}, out: nil},
	))
	clubs, err := ExtractWindow(doc)
	if err != nil {
		t.Fatalf("ExtractWindow() error = %v", err)
	}

	records := NormalizeWindow(clubs, models.WindowSummer)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	for _, rec := range records {
		if rec.Club == "" {
			t.Errorf("record missing club tag: %+v", rec)
		}
		if rec.Movement != models.MovementIn && rec.Movement != models.MovementOut {
			t.Errorf("record movement = %q", rec.Movement)
		}
		if rec.Window != models.WindowSummer {
			t.Errorf("record window = %q, want summer", rec.Window)
		}
	}
}

func TestNormalizeWindowMapsHeaders(t *testing.T) {
	row := sampleRow()
	doc := parseFixture(t, fixturePage(
		clubFixture{name: "Arsenal FC", in: []rowFixture{row}, out: []rowFixture{row}},
	))
	clubs, err := ExtractWindow(doc)
	if err != nil {
		t.Fatalf("ExtractWindow() error = %v", err)
	}

	records := NormalizeWindow(clubs, models.WindowWinter)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	in, out := records[0], records[1]
	if in.Movement != models.MovementIn || out.Movement != models.MovementOut {
		t.Fatalf("movement order = %q, %q; want in, out", in.Movement, out.Movement)
	}

	for _, rec := range []models.RawTransfer{in, out} {
		if rec.PlayerName != "Smith" {
			t.Errorf("player name = %q, want Smith", rec.PlayerName)
		}
		if rec.PlayerID != "12345" {
			t.Errorf("player id = %q, want 12345", rec.PlayerID)
		}
		if rec.Age != "24" {
			t.Errorf("age = %q, want 24", rec.Age)
		}
		if rec.Nationality != "England" {
			t.Errorf("nationality = %q, want England", rec.Nationality)
		}
		if rec.Position != "Centre-Back" {
			t.Errorf("position = %q, want Centre-Back", rec.Position)
		}
		if rec.MarketValue != "€10.00m" {
			t.Errorf("market value = %q, want €10.00m", rec.MarketValue)
		}
		// "Left" and "Joined" both map to the dealing club.
		if rec.DealingClub != "Real Madrid" {
			t.Errorf("dealing club = %q, want Real Madrid", rec.DealingClub)
		}
		if rec.DealingCountry != "Spain" {
			t.Errorf("dealing country = %q, want Spain", rec.DealingCountry)
		}
		if rec.Fee != "€15.00m" {
			t.Errorf("fee = %q, want €15.00m", rec.Fee)
		}
	}
}

func TestNormalizeWindowKeepsDocumentOrder(t *testing.T) {
	first := sampleRow()
	first.player = "Alpha"
	second := sampleRow()
	second.player = "Beta"

	doc := parseFixture(t, fixturePage(
		clubFixture{name: "Arsenal FC", in: []rowFixture{first, second}, out: nil},
	))
	clubs, err := ExtractWindow(doc)
	if err != nil {
		t.Fatalf("ExtractWindow() error = %v", err)
	}

	records := NormalizeWindow(clubs, models.WindowSummer)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].PlayerName != "Alpha" || records[1].PlayerName != "Beta" {
		t.Errorf("order = %q, %q; want Alpha, Beta", records[0].PlayerName, records[1].PlayerName)
	}
}
