package grid

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// View is the render-ready result of the latest applied fetch.
type View struct {
	Rows       []Row
	Total      int
	Page       int
	PageSize   int
	TotalPages int
	Loading    bool
	Err        error
	// Generation is the state generation the rows were fetched for.
	Generation uint64
}

// FetcherOptions tunes a Fetcher. Zero values disable the debounce and the
// per-fetch timeout.
type FetcherOptions struct {
	SearchDebounce time.Duration
	Timeout        time.Duration
	Logger         *slog.Logger
}

// Fetcher reacts to query changes on a Controller and keeps a View of the
// latest response.
//
// Every fetch gets a sequence number. Only the response carrying the latest
// issued number is applied; anything older is dropped when it arrives, so a
// slow response can never overwrite fresher data. Superseded requests also
// have their context cancelled. Search changes are debounced; any other query
// change fires at once and replaces a pending debounced fetch.
type Fetcher struct {
	ctrl    *Controller
	source  DataSource
	opts    FetcherOptions
	logger  *slog.Logger
	baseCtx context.Context

	mu        sync.Mutex
	idle      *sync.Cond
	pending   int
	seq       uint64
	cancel    context.CancelFunc
	timer     *time.Timer
	view      View
	listeners []func(View)
	closed    bool

	unsubscribe func()
}

// NewFetcher subscribes to ctrl. Nothing is fetched until the first query
// change or an explicit Refetch. ctx bounds every fetch the Fetcher issues.
func NewFetcher(ctx context.Context, ctrl *Controller, source DataSource, opts FetcherOptions) *Fetcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		ctrl:    ctrl,
		source:  source,
		opts:    opts,
		logger:  logger,
		baseCtx: ctx,
	}
	f.idle = sync.NewCond(&f.mu)
	st := ctrl.State()
	f.view.Page = st.Pagination.Page
	f.view.PageSize = st.Pagination.PageSize
	f.unsubscribe = ctrl.Subscribe(f.onChange)
	return f
}

func (f *Fetcher) onChange(ch Change) {
	if !ch.Query() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if ch.Kind == ChangeSearch && f.opts.SearchDebounce > 0 {
		f.supersedeLocked()
		f.scheduleLocked()
		return
	}
	f.stopTimerLocked()
	f.startLocked()
}

// Refetch issues a fetch for the current state immediately. It is the
// caller's retry after a failure.
func (f *Fetcher) Refetch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.stopTimerLocked()
	f.startLocked()
}

// scheduleLocked (re)starts the debounce timer. A pending timer counts as
// outstanding work for Wait.
func (f *Fetcher) scheduleLocked() {
	f.stopTimerLocked()
	f.pending++
	var t *time.Timer
	t = time.AfterFunc(f.opts.SearchDebounce, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.timer != t {
			return
		}
		f.timer = nil
		f.doneLocked()
		if !f.closed {
			f.startLocked()
		}
	})
	f.timer = t
}

func (f *Fetcher) stopTimerLocked() {
	if f.timer == nil {
		return
	}
	f.timer.Stop()
	f.timer = nil
	f.doneLocked()
}

func (f *Fetcher) doneLocked() {
	f.pending--
	if f.pending == 0 {
		f.idle.Broadcast()
	}
}

// supersedeLocked invalidates the fetch in flight: its context is cancelled
// and its response will no longer match the latest sequence number. The view
// reports Loading until the next fetch lands.
func (f *Fetcher) supersedeLocked() uint64 {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.seq++
	if !f.view.Loading {
		f.view.Loading = true
		f.publishLocked()
	}
	return f.seq
}

// startLocked issues a new fetch and supersedes the one in flight.
func (f *Fetcher) startLocked() {
	seq := f.supersedeLocked()
	params, gen := f.ctrl.Snapshot()

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if f.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(f.baseCtx, f.opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(f.baseCtx)
	}
	f.cancel = cancel
	f.pending++

	if f.view.Err != nil {
		f.view.Err = nil
		f.publishLocked()
	}

	go f.run(ctx, cancel, seq, gen, params)
}

func (f *Fetcher) run(ctx context.Context, cancel context.CancelFunc, seq, gen uint64, params Params) {
	res, err := f.source.Fetch(ctx, params)
	cancel()

	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.doneLocked()

	if seq != f.seq {
		f.logger.Debug("discarding stale fetch response",
			"seq", seq,
			"latest", f.seq,
			"generation", gen,
		)
		return
	}
	f.cancel = nil
	f.view.Loading = false

	if err != nil {
		f.view.Err = &FetchError{Generation: gen, Err: err}
		f.logger.Warn("fetch failed", "generation", gen, "error", err)
		f.publishLocked()
		return
	}
	if res == nil {
		res = NewResult(nil, 0, params.Pagination.Page, params.Pagination.PageSize)
	}
	f.view = View{
		Rows:       res.Rows,
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
		Generation: gen,
	}
	f.publishLocked()
}

func (f *Fetcher) publishLocked() {
	if len(f.listeners) == 0 {
		return
	}
	v := f.viewLocked()
	for _, fn := range f.listeners {
		fn(v)
	}
}

func (f *Fetcher) viewLocked() View {
	v := f.view
	v.Rows = append([]Row(nil), f.view.Rows...)
	return v
}

// View returns a copy of the current view. Row maps are shared and must not
// be mutated.
func (f *Fetcher) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

// Seq returns the sequence number of the latest issued fetch.
func (f *Fetcher) Seq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

// OnUpdate registers fn for every view change. fn runs with the fetcher's
// lock held and must not call back into the Fetcher.
func (f *Fetcher) OnUpdate(fn func(View)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Wait blocks until no fetch is in flight and no debounced fetch is pending.
func (f *Fetcher) Wait() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.pending > 0 {
		f.idle.Wait()
	}
}

// Close unsubscribes from the controller, stops the debounce timer, and
// cancels the fetch in flight. Its response is discarded.
func (f *Fetcher) Close() {
	f.unsubscribe()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.stopTimerLocked()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.seq++
	f.view.Loading = false
}
