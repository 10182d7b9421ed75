package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/eordo/transfermarkt-data/models"
)

// csvHeader is the canonical column order of the output dataset.
var csvHeader = []string{
	"club",
	"movement",
	"window",
	"player_name",
	"player_id",
	"age",
	"nationality",
	"position",
	"market_value",
	"dealing_club",
	"dealing_country",
	"fee",
	"is_loan",
}

// CSVWriter writes the dataset to a CSV file with a header row. The file is
// only created on the first Write so that a failed run leaves nothing on
// disk.
type CSVWriter struct {
	filename string
	file     *os.File
	writer   *csv.Writer
	mu       sync.Mutex
}

// NewCSVWriter prepares a CSV writer for the given path.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	return &CSVWriter{filename: filename}, nil
}

// Write creates the file if needed and appends the transfers.
func (cw *CSVWriter) Write(transfers []*models.Transfer) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.file == nil {
		f, err := os.Create(cw.filename)
		if err != nil {
			return fmt.Errorf("create csv file: %w", err)
		}
		cw.file = f
		cw.writer = csv.NewWriter(f)
		if err := cw.writer.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}

	for _, t := range transfers {
		if err := cw.writer.Write(csvRecord(t)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

func csvRecord(t *models.Transfer) []string {
	marketValue := ""
	if t.MarketValue != nil {
		marketValue = strconv.FormatFloat(*t.MarketValue, 'f', -1, 64)
	}
	// Booleans are written as 0/1, matching the published datasets.
	isLoan := "0"
	if t.IsLoan {
		isLoan = "1"
	}
	return []string{
		t.Club,
		string(t.Movement),
		string(t.Window),
		t.PlayerName,
		strconv.Itoa(t.PlayerID),
		strconv.Itoa(t.Age),
		t.Nationality,
		t.Position,
		marketValue,
		t.DealingClub,
		t.DealingCountry,
		strconv.FormatFloat(t.Fee, 'f', -1, 64),
		isLoan,
	}
}

// Close flushes and closes the file handle if one was created.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.file == nil {
		return nil
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the dataset was written.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.file == nil {
		return fmt.Errorf("no csv output was written")
	}
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON records, created lazily like
// CSVWriter.
type JSONWriter struct {
	filename string
	file     *os.File
	writer   *bufio.Writer
	encoder  *json.Encoder
	mu       sync.Mutex
}

// NewJSONWriter prepares a JSONL writer for the given path.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	return &JSONWriter{filename: filename}, nil
}

// Write creates the file if needed and appends the transfers as JSONL.
func (jw *JSONWriter) Write(transfers []*models.Transfer) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.file == nil {
		f, err := os.Create(jw.filename)
		if err != nil {
			return fmt.Errorf("create json file: %w", err)
		}
		jw.file = f
		jw.writer = bufio.NewWriter(f)
		jw.encoder = json.NewEncoder(jw.writer)
	}

	for _, t := range transfers {
		if err := jw.encoder.Encode(t); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file if one was created.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.file == nil {
		return nil
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the dataset was written.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.file == nil {
		return fmt.Errorf("no json output was written")
	}
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
