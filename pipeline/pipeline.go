// Package pipeline cleans scraped records and persists the final dataset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eordo/transfermarkt-data/config"
	"github.com/eordo/transfermarkt-data/models"
	"github.com/eordo/transfermarkt-data/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for dataset output.
type OutputWriter interface {
	Write(transfers []*models.Transfer) error
	Close() error
	Validate() error
}

// Pipeline cleans raw records on worker goroutines and collects the result.
// Nothing is written until Close: the dataset is sorted and written in one
// shot, so an output file only ever holds a complete validated dataset.
type Pipeline struct {
	ctx      context.Context
	writer   OutputWriter
	cfg      *config.Config
	recordCh chan models.RawTransfer

	wg sync.WaitGroup

	// seen guards against a window page being processed twice, e.g. a
	// retry firing after a partial response. Distinct transfer events
	// always differ in at least one field of the fingerprint.
	seen *lru.Cache[string, struct{}]

	collectMu sync.Mutex
	collected []*models.Transfer

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline buffering records in memory until Close.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) (*Pipeline, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("dedupe cache: %w", err)
	}
	return &Pipeline{
		ctx:      ctx,
		writer:   writer,
		cfg:      cfg,
		recordCh: make(chan models.RawTransfer, cfg.PipelineBufferSize),
		seen:     seen,
		metrics:  newMetrics(),
		shutdown: make(chan struct{}),
	}, nil
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues raw records for cleaning.
func (p *Pipeline) Process(records []models.RawTransfer) error {
	if len(records) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, record := range records {
		if err := p.enqueue(record); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for workers to finish, then sorts and writes the dataset.
// If any record failed fatally, nothing is written and the error is
// returned instead.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.recordCh)
	})

	p.wg.Wait()

	if err := p.Err(); err != nil {
		return err
	}

	p.collectMu.Lock()
	transfers := p.collected
	p.collectMu.Unlock()

	parser.Sort(transfers)
	if err := p.writer.Write(transfers); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

// Err returns the first fatal error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				snapshot := p.GetMetrics()
				processed := snapshot["processed_records"].(int64)
				validation := snapshot["validation_errors"].(map[string]int)
				slog.Info("pipeline progress",
					slog.Int64("processed", processed),
					slog.Int("validation_errors", len(validation)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.Transfer, 0, p.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.collectMu.Lock()
		p.collected = append(p.collected, batch...)
		p.collectMu.Unlock()
		batch = batch[:0]
	}

	for record := range p.recordCh {
		transfer := p.prepare(record)
		if transfer == nil {
			continue
		}
		batch = append(batch, transfer)
		if len(batch) >= p.cfg.BatchSize {
			flush()
		}
	}
	flush()
}

func (p *Pipeline) prepare(record models.RawTransfer) *models.Transfer {
	transfer, err := parser.Clean(record)
	if err != nil {
		var coercion *parser.CoercionError
		if errors.As(err, &coercion) && p.cfg.DropBadRows {
			slog.Warn("dropping row that failed coercion",
				slog.String("club", record.Club),
				slog.Any("error", err),
			)
			p.metrics.addValidation("bad_row")
			return nil
		}
		p.setErr(fmt.Errorf("clean record for club %q: %w", record.Club, err))
		return nil
	}

	key := fingerprint(transfer)
	if _, ok := p.seen.Get(key); ok {
		p.metrics.addValidation("duplicate_record")
		return nil
	}
	p.seen.Add(key, struct{}{})

	p.metrics.incrementProcessed()
	return transfer
}

// fingerprint keys the dedupe cache on every field of the record.
func fingerprint(t *models.Transfer) string {
	marketValue := ""
	if t.MarketValue != nil {
		marketValue = strconv.FormatFloat(*t.MarketValue, 'f', -1, 64)
	}
	return strings.Join([]string{
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
		strconv.FormatBool(t.IsLoan),
	}, "|")
}

func (p *Pipeline) enqueue(record models.RawTransfer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.recordCh <- record:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_records": m.processed,
		"validation_errors": copyValidation,
	}
}
