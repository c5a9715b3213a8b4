package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"salesdash/internal/models"
)

const tracerName = "salesdash/engine"

// Observer receives the outcome of every fetch the session runs.
type Observer interface {
	ObserveFetch(year int, d time.Duration, records int, err error)
}

// Snapshot is a copy of the session state safe to hand to presentation code.
type Snapshot struct {
	Year         int                  `json:"year"`
	Records      []models.SalesRecord `json:"-"`
	RecordCount  int                  `json:"record_count"`
	GenerationID string               `json:"generation_id"`
	Loading      bool                 `json:"loading"`
	Error        string               `json:"error,omitempty"`
	Retryable    bool                 `json:"retryable"`
	ChartKind    ChartKind            `json:"chart_kind"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type SessionOption func(*Session)

// WithFetchDelay sets the simulated latency of every fetch.
func WithFetchDelay(d time.Duration) SessionOption {
	return func(s *Session) { s.delay = d }
}

func WithObserver(o Observer) SessionOption {
	return func(s *Session) { s.observer = o }
}

func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// Session owns the current record set. Fetches replace it wholesale; a fetch
// that is overtaken by a newer one never commits.
type Session struct {
	gen      *Generator
	delay    time.Duration
	observer Observer
	logger   *slog.Logger
	tracer   trace.Tracer

	mu        sync.RWMutex
	year      int
	records   []models.SalesRecord
	genID     string
	seq       uint64
	cancel    context.CancelFunc
	loading   bool
	lastErr   error
	chart     ChartKind
	updatedAt time.Time

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSub     int
}

func NewSession(gen *Generator, year int, opts ...SessionOption) *Session {
	s := &Session{
		gen:         gen,
		delay:       500 * time.Millisecond,
		logger:      slog.Default(),
		year:        year,
		chart:       ChartKinds[0],
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	s.tracer = otel.Tracer(tracerName)
	return s
}

func (s *Session) Generator() *Generator { return s.gen }

// Fetch waits out the simulated latency, generates year and commits it unless
// a newer fetch started meanwhile, in which case ErrSuperseded is returned.
// Generation failures are recorded in the session state and returned.
func (s *Session) Fetch(ctx context.Context, year int) error {
	ctx, span := s.tracer.Start(ctx, "session.fetch", trace.WithAttributes(attribute.Int("sales.year", year)))
	defer span.End()

	// An unsupported year is rejected before it can supersede a pending fetch.
	if !s.gen.Catalog().Supports(year) {
		_, err := s.gen.Generate(year)
		if s.observer != nil {
			s.observer.ObserveFetch(year, 0, 0, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "Rejected fetch for unsupported year", "year", year)
		return err
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.seq++
	seq := s.seq
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.loading = true
	s.mu.Unlock()
	s.notify()

	start := time.Now()
	records, err := s.load(fetchCtx, year)
	elapsed := time.Since(start)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Discarding stale fetch", "year", year, "seq", seq)
		span.SetAttributes(attribute.Bool("sales.superseded", true))
		return ErrSuperseded
	}
	s.cancel = nil
	s.loading = false
	if err != nil && ctx.Err() != nil {
		// caller gave up; keep the previous state as it was
		s.mu.Unlock()
		s.notify()
		return err
	}
	switch {
	case err == nil:
		s.commitLocked(year, records)
	default:
		s.year = year
		s.records = nil
		s.lastErr = err
		s.updatedAt = time.Now()
	}
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ObserveFetch(year, elapsed, len(records), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "Sales data fetch failed", "year", year, "error", err)
	} else {
		span.SetAttributes(attribute.Int("sales.records", len(records)))
		s.logger.InfoContext(ctx, "Sales data fetched", "year", year, "records", len(records), "duration_ms", elapsed.Milliseconds())
	}
	s.notify()
	return err
}

func (s *Session) load(ctx context.Context, year int) ([]models.SalesRecord, error) {
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	_, span := s.tracer.Start(ctx, "generator.generate")
	defer span.End()
	return s.gen.Generate(year)
}

// Refresh regenerates the session's current year.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	year := s.year
	s.mu.RUnlock()
	return s.Fetch(ctx, year)
}

// Replace swaps the whole record set. Records are copied; year becomes the
// session's current year. Any in-flight fetch is superseded.
func (s *Session) Replace(year int, records []models.SalesRecord) {
	s.mu.Lock()
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.loading = false
	s.commitLocked(year, slices.Clone(records))
	s.mu.Unlock()
	s.notify()
}

func (s *Session) commitLocked(year int, records []models.SalesRecord) {
	s.year = year
	s.records = records
	s.genID = uuid.NewString()
	s.lastErr = nil
	s.updatedAt = time.Now()
}

// Records returns a copy of the current record set.
func (s *Session) Records() []models.SalesRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

func (s *Session) Year() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.year
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Year:         s.year,
		Records:      slices.Clone(s.records),
		RecordCount:  len(s.records),
		GenerationID: s.genID,
		Loading:      s.loading,
		ChartKind:    s.chart,
		UpdatedAt:    s.updatedAt,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
		snap.Retryable = true
	}
	return snap
}

// Summary summarizes year over the current record set.
func (s *Session) Summary(year int) (models.YearlySummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summarize(s.records, year)
}

// Query filters the current record set.
func (s *Session) Query(q models.SalesQuery) []models.SalesRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Query(s.records, q)
}

func (s *Session) ChartKind() ChartKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chart
}

// SetChartKind moves the chart selector to kind. Any kind may follow any other.
func (s *Session) SetChartKind(kind ChartKind) error {
	if _, err := ParseChartKind(string(kind)); err != nil {
		return err
	}
	s.mu.Lock()
	changed := s.chart != kind
	s.chart = kind
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return nil
}

// Subscribe registers fn for every state change and returns its cancel func.
// fn runs synchronously on the goroutine that changed the state.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Session) notify() {
	s.subMu.Lock()
	if len(s.subscribers) == 0 {
		s.subMu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	snap := s.Snapshot()
	snap.Records = nil
	for _, fn := range fns {
		fn(snap)
	}
}
