package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eordo/transfermarkt-data/models"
)

func sampleTransfer() *models.Transfer {
	marketValue := 10_000_000.0
	return &models.Transfer{
		Club:           "Arsenal FC",
		Movement:       models.MovementIn,
		Window:         models.WindowSummer,
		PlayerName:     "Smith",
		PlayerID:       12345,
		Age:            24,
		Nationality:    "England",
		Position:       "Centre-Back",
		MarketValue:    &marketValue,
		DealingClub:    "Real Madrid",
		DealingCountry: "Spain",
		Fee:            15_000_000,
		IsLoan:         false,
	}
}

func TestCSVWriterOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2024.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("new csv writer: %v", err)
	}

	loan := sampleTransfer()
	loan.PlayerName = "Jones"
	loan.MarketValue = nil
	loan.Fee = 1_000_000
	loan.IsLoan = true

	if err := writer.Write([]*models.Transfer{sampleTransfer(), loan}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 records", len(rows))
	}

	wantHeader := "club,movement,window,player_name,player_id,age,nationality,position,market_value,dealing_club,dealing_country,fee,is_loan"
	if got := strings.Join(rows[0], ","); got != wantHeader {
		t.Fatalf("header = %q, want %q", got, wantHeader)
	}

	first := rows[1]
	if first[0] != "Arsenal FC" || first[1] != "in" || first[2] != "summer" {
		t.Errorf("tags = %v", first[:3])
	}
	if first[8] != "10000000" {
		t.Errorf("market_value = %q, want 10000000", first[8])
	}
	if first[11] != "15000000" || first[12] != "0" {
		t.Errorf("fee/is_loan = %q/%q, want 15000000/0", first[11], first[12])
	}

	second := rows[2]
	if second[8] != "" {
		t.Errorf("missing market_value = %q, want empty", second[8])
	}
	if second[11] != "1000000" || second[12] != "1" {
		t.Errorf("loan fee/is_loan = %q/%q, want 1000000/1", second[11], second[12])
	}
}

func TestCSVWriterCreatesFileLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2024.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("new csv writer: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("output file exists before any write")
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("validate = nil before any write, want error")
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close without write: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("output file exists after a run that wrote nothing")
	}
}

func TestJSONWriterOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2024.json")
	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("new json writer: %v", err)
	}

	if err := writer.Write([]*models.Transfer{sampleTransfer()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatalf("no json lines written")
	}
	var decoded models.Transfer
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if decoded.PlayerName != "Smith" || decoded.PlayerID != 12345 {
		t.Errorf("decoded = %q/%d, want Smith/12345", decoded.PlayerName, decoded.PlayerID)
	}
	if decoded.MarketValue == nil || *decoded.MarketValue != 10_000_000 {
		t.Errorf("decoded market value = %v, want 10000000", decoded.MarketValue)
	}
	if scanner.Scan() {
		t.Fatalf("unexpected extra json line: %q", scanner.Text())
	}
}

func TestDualWriterWritesBothFormats(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "2024.csv")
	jsonPath := filepath.Join(dir, "2024.json")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("new dual writer: %v", err)
	}
	if err := writer.Write([]*models.Transfer{sampleTransfer()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, path := range []string{csvPath, jsonPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", path)
		}
	}
}
