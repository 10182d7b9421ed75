package parser

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/eordo/transfermarkt-data/models"
)

// Clean converts one raw record into the canonical schema: market value and
// fee parsed to numbers, loan status inferred, identifier and age coerced to
// integers. Coercion failures are surfaced per row; the caller decides
// whether to drop the row or abort the run.
func Clean(raw models.RawTransfer) (*models.Transfer, error) {
	marketValue, err := ParseCurrency(raw.MarketValue)
	if err != nil {
		return nil, fmt.Errorf("market value for %q: %w", raw.PlayerName, err)
	}

	fee, isLoan, err := ParseFee(raw.Fee)
	if err != nil {
		return nil, fmt.Errorf("fee for %q: %w", raw.PlayerName, err)
	}

	playerID, err := strconv.Atoi(raw.PlayerID)
	if err != nil {
		return nil, &CoercionError{Field: "player_id", Value: raw.PlayerID, Player: raw.PlayerName}
	}
	age, err := strconv.Atoi(raw.Age)
	if err != nil {
		return nil, &CoercionError{Field: "age", Value: raw.Age, Player: raw.PlayerName}
	}

	return &models.Transfer{
		Club:           raw.Club,
		Movement:       raw.Movement,
		Window:         raw.Window,
		PlayerName:     raw.PlayerName,
		PlayerID:       playerID,
		Age:            age,
		Nationality:    raw.Nationality,
		Position:       raw.Position,
		MarketValue:    marketValue,
		DealingClub:    raw.DealingClub,
		DealingCountry: raw.DealingCountry,
		Fee:            fee,
		IsLoan:         isLoan,
	}, nil
}

var movementRank = map[models.Movement]int{
	models.MovementIn:  0,
	models.MovementOut: 1,
}

var windowRank = map[models.Window]int{
	models.WindowSummer: 0,
	models.WindowWinter: 1,
}

// Sort orders the dataset by club ascending, then movement (in before out),
// then window (summer before winter). The sort is stable, so ties keep
// their extraction order, and re-sorting a sorted dataset is a no-op.
func Sort(transfers []*models.Transfer) {
	sort.SliceStable(transfers, func(i, j int) bool {
		a, b := transfers[i], transfers[j]
		if a.Club != b.Club {
			return a.Club < b.Club
		}
		if a.Movement != b.Movement {
			return movementRank[a.Movement] < movementRank[b.Movement]
		}
		return windowRank[a.Window] < windowRank[b.Window]
	})
}
