// Package scraper fetches Transfermarkt transfer-window pages and feeds
// extracted records into the pipeline.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/eordo/transfermarkt-data/config"
	"github.com/eordo/transfermarkt-data/models"
	"github.com/eordo/transfermarkt-data/parser"
	"github.com/eordo/transfermarkt-data/pipeline"
)

const windowCtxKey = "window"

// Scraper wraps the colly collector and retry logic for transfer pages.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryManager
	Metrics   *Metrics

	requestCount int64
	pageCount    int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
	fatal        error

	handlersOnce sync.Once
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Host),
	)
	// Retries revisit the same window URL.
	collector.AllowURLRevisit = true

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}
	s.retry = newRetryManager(collector, cfg, s.Metrics)
	return s, nil
}

// Run fetches every configured transfer window and streams the extracted
// records through the pipeline. It returns once all requests and retries
// have settled; a window that cannot be reconciled fails the whole run.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.retry.SetContext(ctx)
	s.configureHandlers(ctx, p)

	start := time.Now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.collector.Wait()
			s.retry.Stop()
		case <-done:
		}
	}()

	for _, window := range s.cfg.Windows {
		pageURL := s.cfg.WindowURL(s.cfg.Season, window)
		cctx := colly.NewContext()
		cctx.Put(windowCtxKey, string(window))
		if err := s.collector.Request(http.MethodGet, pageURL, nil, cctx, nil); err != nil {
			return nil, fmt.Errorf("request %s window: %w", window, err)
		}
	}

	// Wait settles in-flight requests only; a scheduled retry fires later
	// and issues a fresh request, so drain and wait until both are idle.
	for {
		s.collector.Wait()
		if !s.retry.drain() {
			break
		}
	}
	s.retry.Stop()

	if err := s.fatalErr(); err != nil {
		return nil, err
	}

	result := &models.ScrapeResult{
		StartTime:    start,
		EndTime:      time.Now(),
		ErrorCount:   int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:   s.snapshotFailedURLs(),
		ErrorsByType: s.snapshotErrors(),
		RetryCount:   s.retry.TotalRetries(),
		RequestCount: int(atomic.LoadInt64(&s.requestCount)),
		PageCount:    int(atomic.LoadInt64(&s.pageCount)),
	}

	if snapshot := p.GetMetrics(); snapshot != nil {
		if processed, ok := snapshot["processed_records"].(int64); ok {
			result.TotalCount = int(processed)
		}
	}

	return result, nil
}

func (s *Scraper) configureHandlers(ctx context.Context, p *pipeline.Pipeline) {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			// Rotate the user agent on every attempt so a denied
			// request retries under a different header.
			r.Headers.Set("User-Agent", s.randomUserAgent())
			atomic.AddInt64(&s.requestCount, 1)
			s.Metrics.IncRequest("started")
			slog.Debug("requesting window page",
				slog.String("url", r.URL.String()),
				slog.String("window", r.Ctx.Get(windowCtxKey)),
			)
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if r.StatusCode >= http.StatusBadRequest {
				slog.Error("non-200 response",
					slog.Int("status", r.StatusCode),
					slog.String("url", r.Request.URL.String()),
				)
			}
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&s.errorCount, 1)
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			classified := classifyError(err, statusCode)
			category := errorTypeLabel(classified)

			s.mu.Lock()
			s.errorsByType[category]++
			s.mu.Unlock()

			pageURL := ""
			var cctx *colly.Context
			if r != nil && r.Request != nil {
				cctx = r.Request.Ctx
				if r.Request.URL != nil {
					pageURL = r.Request.URL.String()
				}
			}
			slog.Error("request error",
				slog.String("url", pageURL),
				slog.String("category", category),
				slog.Any("error", err),
			)
			s.Metrics.IncError(category)

			if !s.retry.Schedule(pageURL, cctx) {
				s.mu.Lock()
				s.failedURLs = append(s.failedURLs, pageURL)
				s.mu.Unlock()
			}
		})

		s.collector.OnHTML("html", func(e *colly.HTMLElement) {
			if ctx.Err() != nil {
				return
			}
			window := models.Window(e.Request.Ctx.Get(windowCtxKey))
			atomic.AddInt64(&s.pageCount, 1)

			clubs, err := parser.ExtractWindow(e.DOM)
			if err != nil {
				s.setFatal(fmt.Errorf("extract %s window: %w", window, err))
				return
			}
			records := parser.NormalizeWindow(clubs, window)
			s.Metrics.IncWindows()
			s.Metrics.AddRecords(len(records))
			slog.Info("window parsed",
				slog.String("window", string(window)),
				slog.Int("clubs", len(clubs)),
				slog.Int("records", len(records)),
			)

			if err := p.Process(records); err != nil && err != pipeline.ErrPipelineClosed {
				slog.Error("pipeline process error", slog.Any("error", err))
			}
		})
	})
}

func (s *Scraper) randomUserAgent() string {
	agents := s.cfg.UserAgents
	return agents[rand.Intn(len(agents))]
}

func (s *Scraper) setFatal(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal == nil {
		s.fatal = err
	}
}

func (s *Scraper) fatalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

type retryManager struct {
	collector *colly.Collector
	cfg       *config.Config
	metrics   *Metrics
	ctx       context.Context

	mu           sync.Mutex
	attempts     map[string]int
	contexts     map[string]*colly.Context
	timers       map[string]*time.Timer
	pending      sync.WaitGroup
	totalRetries int
	stopped      bool
}

func newRetryManager(collector *colly.Collector, cfg *config.Config, metrics *Metrics) *retryManager {
	return &retryManager{
		collector: collector,
		cfg:       cfg,
		attempts:  make(map[string]int),
		contexts:  make(map[string]*colly.Context),
		timers:    make(map[string]*time.Timer),
		metrics:   metrics,
		ctx:       context.Background(),
	}
}

// Schedule queues a retry of the given URL, keeping its request context so
// the window tag survives the retry. It reports false once the per-URL
// attempt limit is exhausted.
func (rm *retryManager) Schedule(pageURL string, cctx *colly.Context) bool {
	if rm.cfg.MaxRetries == 0 || pageURL == "" {
		return false
	}

	rm.mu.Lock()

	if rm.stopped || (rm.ctx != nil && rm.ctx.Err() != nil) {
		rm.mu.Unlock()
		return false
	}

	attempt := rm.attempts[pageURL]
	if attempt >= rm.cfg.MaxRetries {
		rm.mu.Unlock()
		return false
	}

	attempt++
	rm.attempts[pageURL] = attempt
	rm.totalRetries++
	if cctx != nil {
		rm.contexts[pageURL] = cctx
	}
	rm.metrics.IncRetries()

	delay := rm.backoff(attempt)
	rm.resetTimerLocked(pageURL)
	rm.pending.Add(1)
	rm.timers[pageURL] = time.AfterFunc(delay, func() {
		rm.fireRetry(pageURL)
	})
	rm.mu.Unlock()
	return true
}

// drain blocks until every scheduled retry has fired and re-issued its
// request. It reports whether any retry was pending, in which case the
// caller must wait on the collector again.
func (rm *retryManager) drain() bool {
	rm.mu.Lock()
	n := len(rm.timers)
	rm.mu.Unlock()
	if n == 0 {
		return false
	}
	rm.pending.Wait()
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) resetTimerLocked(pageURL string) {
	if timer, ok := rm.timers[pageURL]; ok {
		if timer.Stop() {
			rm.pending.Done()
		}
		delete(rm.timers, pageURL)
	}
}

func (rm *retryManager) fireRetry(pageURL string) {
	defer rm.pending.Done()

	rm.mu.Lock()
	if rm.stopped {
		rm.mu.Unlock()
		return
	}
	ctx := rm.ctx
	cctx := rm.contexts[pageURL]
	rm.mu.Unlock()

	if ctx != nil && ctx.Err() != nil {
		return
	}
	if err := rm.collector.Request(http.MethodGet, pageURL, nil, cctx, nil); err != nil {
		slog.Debug("retry request failed", slog.String("url", pageURL), slog.Any("error", err))
	}

	rm.mu.Lock()
	delete(rm.timers, pageURL)
	rm.mu.Unlock()
}

func (rm *retryManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return
	}

	rm.stopped = true
	for pageURL, timer := range rm.timers {
		if timer.Stop() {
			rm.pending.Done()
		}
		delete(rm.timers, pageURL)
	}
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

func (rm *retryManager) SetContext(ctx context.Context) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ctx == nil {
		rm.ctx = context.Background()
		return
	}
	rm.ctx = ctx
}
