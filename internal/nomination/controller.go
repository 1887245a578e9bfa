package nomination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maaaruch/shoppies-bot/internal/domain"
	"github.com/maaaruch/shoppies-bot/internal/metrics"
)

var (
	ErrCapacityExceeded = errors.New("nomination limit reached")
	ErrEmptySubmission  = errors.New("nothing to submit")
	ErrNotInResults     = errors.New("movie is not in the current search results")
	ErrAlreadyNominated = errors.New("movie is already nominated")
	ErrNotNominated     = errors.New("movie is not nominated")
	ErrSubmitInFlight   = errors.New("submission already in progress")
)

// Searcher looks movies up by free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.Movie, error)
}

// Submitter stores a finished shortlist and returns its document ID.
type Submitter interface {
	Submit(ctx context.Context, movies []domain.Movie) (string, error)
}

// Cache persists the nomination set between sessions.
type Cache interface {
	Load(ctx context.Context) ([]domain.Movie, error)
	Save(ctx context.Context, movies []domain.Movie) error
}

type Options struct {
	Searcher     Searcher
	Submitter    Submitter
	Cache        Cache
	ShareBaseURL string
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// Loading reports which network calls are in flight.
type Loading struct {
	Searching  bool
	Submitting bool
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	Query       string
	Results     []domain.Movie
	Nominations []domain.Movie
	Alerts      []AlertKind
	Loading     Loading
	ShareLink   string
}

// Controller owns one user's nomination session. All state changes go
// through it; the lock is never held across a network call.
type Controller struct {
	searcher  Searcher
	submitter Submitter
	cache     Cache
	shareBase string
	log       *zap.Logger
	metrics   *metrics.Metrics

	mu        sync.Mutex
	query     string
	results   []domain.Movie
	resultIdx map[string]int
	set       *Set
	alerts    *alertQueue
	loading   Loading
	searchGen uint64
	shareLink string
}

func NewController(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		searcher:  opts.Searcher,
		submitter: opts.Submitter,
		cache:     opts.Cache,
		shareBase: opts.ShareBaseURL,
		log:       log,
		metrics:   opts.Metrics,
		set:       NewSet(nil),
		alerts:    newAlertQueue(),
	}
}

// Restore loads the cached nomination set. A missing or unreadable entry
// leaves the session empty.
func (c *Controller) Restore(ctx context.Context) {
	if c.cache == nil {
		return
	}
	movies, err := c.cache.Load(ctx)
	if err != nil {
		c.log.Warn("restore nominations", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = NewSet(movies)
	c.markResultsLocked()
}

// Search runs query against the search service and replaces the results.
// Only the newest call may apply its response.
func (c *Controller) Search(ctx context.Context, query string) (Snapshot, error) {
	c.mu.Lock()
	c.query = query
	c.loading.Searching = true
	c.searchGen++
	gen := c.searchGen
	c.mu.Unlock()

	start := time.Now()
	movies, err := c.searcher.Search(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.searchGen {
		c.metrics.ObserveSearch("stale", start)
		c.log.Debug("dropping stale search response", zap.String("query", query), zap.Uint64("gen", gen))
		return c.snapshotLocked(), nil
	}
	c.loading.Searching = false

	if err != nil {
		c.setResultsLocked(nil)
		c.metrics.ObserveSearch("error", start)
		c.log.Info("search failed", zap.String("query", query), zap.Error(err))
		return c.snapshotLocked(), fmt.Errorf("search %q: %w", query, err)
	}
	if len(movies) == 0 {
		c.setResultsLocked(nil)
		c.metrics.ObserveSearch("empty", start)
		return c.snapshotLocked(), nil
	}

	c.setResultsLocked(movies)
	c.metrics.ObserveSearch("ok", start)
	return c.snapshotLocked(), nil
}

// Nominate promotes a movie from the current results into the set. The set
// is frozen while a submission is in flight.
func (c *Controller) Nominate(ctx context.Context, id string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading.Submitting {
		return c.snapshotLocked(), ErrSubmitInFlight
	}
	if c.set.Full() {
		c.pulseLocked(AlertMaxReached)
		return c.snapshotLocked(), ErrCapacityExceeded
	}
	if c.set.Has(id) {
		return c.snapshotLocked(), ErrAlreadyNominated
	}

	idx := c.resultIndexLocked(id)
	if idx < 0 {
		return c.snapshotLocked(), ErrNotInResults
	}

	c.set.add(c.results[idx])
	c.results[idx].Nominated = true
	c.metrics.IncNomination("add")
	c.persistLocked(ctx)
	return c.snapshotLocked(), nil
}

// Remove drops a movie from the set and unmarks it in the results.
func (c *Controller) Remove(ctx context.Context, id string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading.Submitting {
		return c.snapshotLocked(), ErrSubmitInFlight
	}
	if !c.set.remove(id) {
		return c.snapshotLocked(), ErrNotNominated
	}
	if idx := c.resultIndexLocked(id); idx >= 0 {
		c.results[idx].Nominated = false
	}
	c.metrics.IncNomination("remove")
	c.persistLocked(ctx)
	return c.snapshotLocked(), nil
}

// Submit sends the set to the submission service. On success the session is
// reset and ShareLink points at the stored document.
func (c *Controller) Submit(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.set.Len() == 0 {
		c.pulseLocked(AlertEmptySubmission)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrEmptySubmission
	}
	if c.loading.Submitting {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrSubmitInFlight
	}
	c.loading.Submitting = true
	movies := c.set.Movies()
	c.mu.Unlock()

	start := time.Now()
	id, err := c.submitter.Submit(ctx, movies)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading.Submitting = false

	if err != nil {
		c.metrics.ObserveSubmit("error", start)
		c.log.Error("submit nominations", zap.Int("count", len(movies)), zap.Error(err))
		c.pulseLocked(AlertSubmissionFailed)
		return c.snapshotLocked(), fmt.Errorf("submit nominations: %w", err)
	}

	c.metrics.ObserveSubmit("ok", start)
	c.set.clear()
	c.setResultsLocked(nil)
	c.query = ""
	c.shareLink = c.shareBase + id
	c.pulseLocked(AlertSubmissionSucceeded)
	c.persistLocked(ctx)
	c.log.Info("nominations submitted", zap.String("id", id), zap.Int("count", len(movies)))
	return c.snapshotLocked(), nil
}

// Dismiss hides a visible alert.
func (c *Controller) Dismiss(kind AlertKind) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts.dismiss(kind)
	return c.snapshotLocked()
}

// Alerts drains the alert events raised since the previous call.
func (c *Controller) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alerts.drain()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	results := make([]domain.Movie, len(c.results))
	copy(results, c.results)
	return Snapshot{
		Query:       c.query,
		Results:     results,
		Nominations: c.set.Movies(),
		Alerts:      c.alerts.shown(),
		Loading:     c.loading,
		ShareLink:   c.shareLink,
	}
}

// setResultsLocked replaces the results, dropping duplicate IDs so the
// index stays one-to-one.
func (c *Controller) setResultsLocked(movies []domain.Movie) {
	c.results = make([]domain.Movie, 0, len(movies))
	c.resultIdx = make(map[string]int, len(movies))
	for _, m := range movies {
		if _, dup := c.resultIdx[m.ImdbID]; dup || m.ImdbID == "" {
			continue
		}
		c.resultIdx[m.ImdbID] = len(c.results)
		c.results = append(c.results, m)
	}
	c.markResultsLocked()
}

func (c *Controller) resultIndexLocked(id string) int {
	if i, ok := c.resultIdx[id]; ok {
		return i
	}
	return -1
}

func (c *Controller) markResultsLocked() {
	for i := range c.results {
		c.results[i].Nominated = c.set.Has(c.results[i].ImdbID)
	}
}

func (c *Controller) pulseLocked(kind AlertKind) {
	c.alerts.pulse(kind)
	c.metrics.IncAlert(string(kind))
}

// persistLocked mirrors the set to the cache. Failures are logged; the
// in-memory set stays authoritative.
func (c *Controller) persistLocked(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Save(ctx, c.set.Movies()); err != nil {
		c.log.Warn("persist nominations", zap.Error(err))
	}
}
