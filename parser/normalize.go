package parser

import (
	"github.com/eordo/transfermarkt-data/models"
)

// canonicalColumns maps the headers observed across page variants to
// canonical field names. Headers are authoritative for schema mapping even
// though cell parsing is positional: the fee column shifts position in some
// layouts. Both "Position" and "Pos" variants fold into position.
var canonicalColumns = map[string]string{
	"In":           "player",
	"Out":          "player",
	"Age":          "age",
	"Nat.":         "nationality",
	"Position":     "position",
	"Pos":          "position",
	"Market value": "market_value",
	"Left":         "dealing_club",
	"Joined":       "dealing_club",
	"Country":      "dealing_country",
	"Fee":          "fee",
}

// NormalizeWindow flattens one window's per-club tables into raw records
// tagged with club, movement, and window. Records keep document order: per
// club, all in rows then all out rows. The final global ordering is imposed
// by Sort, not here.
func NormalizeWindow(clubs []ClubTables, window models.Window) []models.RawTransfer {
	var records []models.RawTransfer
	for _, ct := range clubs {
		records = append(records, normalizeTable(ct.In, ct.Club, models.MovementIn, window)...)
		records = append(records, normalizeTable(ct.Out, ct.Club, models.MovementOut, window)...)
	}
	return records
}

func normalizeTable(t RawTable, club string, movement models.Movement, window models.Window) []models.RawTransfer {
	records := make([]models.RawTransfer, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := models.RawTransfer{
			Club:     club,
			Movement: movement,
			Window:   window,
		}
		for i, cell := range row {
			if i >= len(t.Headers) {
				break
			}
			switch canonicalColumns[t.Headers[i]] {
			case "player":
				rec.PlayerName = cell.Text
				rec.PlayerID = cell.Ref
			case "age":
				rec.Age = cell.Text
			case "nationality":
				rec.Nationality = cell.Text
			case "position":
				rec.Position = cell.Text
			case "market_value":
				rec.MarketValue = cell.Text
			case "dealing_club":
				rec.DealingClub = cell.Text
			case "dealing_country":
				rec.DealingCountry = cell.Text
			case "fee":
				rec.Fee = cell.Text
			}
		}
		records = append(records, rec)
	}
	return records
}
