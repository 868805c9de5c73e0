package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gunta/skypilot/internal/client"
	"github.com/gunta/skypilot/internal/currency"
	"github.com/gunta/skypilot/internal/model"
)

var (
	// ErrBusy is returned when an operation is requested while another one
	// is still running. The request is dropped.
	ErrBusy = errors.New("orchestrator busy")
	// ErrClosed is returned once the orchestrator has been shut down.
	ErrClosed = errors.New("orchestrator closed")
)

// DefaultTrackLimit bounds the number of jobs tracked in one session.
const DefaultTrackLimit = 20

type State string

const (
	StateIdle            State = "idle"
	StateRefreshing      State = "refreshing"
	StateCreating        State = "creating"
	StateRemixing        State = "remixing"
	StateDownloading     State = "downloading"
	StateDeleting        State = "deleting"
	StateLoadingCurrency State = "loadingCurrency"
)

var stateForKind = map[model.OperationKind]State{
	model.OpRefresh:  StateRefreshing,
	model.OpCreate:   StateCreating,
	model.OpRemix:    StateRemixing,
	model.OpDownload: StateDownloading,
	model.OpDelete:   StateDeleting,
	model.OpCurrency: StateLoadingCurrency,
}

// CurrencySource resolves the formatters used for cost summaries.
type CurrencySource interface {
	Resolve(ctx context.Context) currency.Resolution
	USD(ctx context.Context) *currency.Formatter
}

// AssetDownloader writes video assets to disk.
type AssetDownloader interface {
	Download(ctx context.Context, videoID string, choice model.AssetChoice, destination string) (*model.DownloadedAssets, error)
	ForgetMirror(ctx context.Context, videoID string) error
}

// Notifier signals a finished job to the user.
type Notifier interface {
	Play(ctx context.Context)
}

// Dependencies wires the orchestrator. Currency, Downloader and Notifier may
// be nil.
type Dependencies struct {
	Videos     client.VideoService
	Currency   CurrencySource
	Downloader AssetDownloader
	Notifier   Notifier
	Defaults   model.Defaults
	TrackLimit int
}

// Snapshot is an immutable view of the orchestrator. Maps and slices must not
// be modified by the receiver.
type Snapshot struct {
	State             State                         `json:"state"`
	Videos            []model.Video                 `json:"videos"`
	TrackedJobs       map[string]model.TrackedJob   `json:"trackedJobs"`
	CostSummaries     map[string]*model.CostSummary `json:"costSummaries"`
	Formatter         *currency.Formatter           `json:"-"`
	PreferredCurrency string                        `json:"preferredCurrency,omitempty"`
	CurrencyError     string                        `json:"currencyError,omitempty"`
	Defaults          model.Defaults                `json:"defaults"`
	OperationVersion  uint64                        `json:"operationVersion"`
	LastOperation     OperationResult               `json:"lastOperation,omitempty"`
	Error             string                        `json:"error,omitempty"`
}

// TrackedList returns tracked jobs, most recently started first.
func (s Snapshot) TrackedList() []model.TrackedJob {
	jobs := make([]model.TrackedJob, 0, len(s.TrackedJobs))
	for _, j := range s.TrackedJobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].StartedAt.After(jobs[k].StartedAt) })
	return jobs
}

type EventType string

const (
	EventState     EventType = "state"
	EventTrack     EventType = "track"
	EventOperation EventType = "operation"
)

// Event is delivered to subscribers after every transition.
type Event struct {
	Type     EventType
	Snapshot Snapshot
	// Job is set for EventTrack.
	Job *model.TrackedJob
}

// Orchestrator serialises video operations. It runs one operation at a time
// and rejects requests that arrive while it is busy.
type Orchestrator struct {
	deps Dependencies
	now  func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan interface{}
	done   chan struct{}

	current atomic.Pointer[Snapshot]

	subMu  sync.RWMutex
	subs   map[int]func(Event)
	nextID int

	// actor-owned
	st          actorState
	waiters     map[*waiter]struct{}
	cancelWatch context.CancelFunc
}

type actorState struct {
	state         State
	videos        []model.Video
	tracked       map[string]model.TrackedJob
	summaries     map[string]*model.CostSummary
	formatter     *currency.Formatter
	usd           *currency.Formatter
	currencyError string
	defaults      model.Defaults
	version       uint64
	last          OperationResult
	err           string
	lastErr       error
}

// flowContext is handed to an operation when it is accepted.
type flowContext struct {
	id       string
	ctx      context.Context
	watchCtx context.Context
	defaults model.Defaults
}

type flowFunc func(fc flowContext) (OperationResult, error)

type opRequest struct {
	kind   model.OperationKind
	run    flowFunc
	waiter *waiter
	reply  chan error
}

type opDone struct {
	kind   model.OperationKind
	id     string
	result OperationResult
	err    error
}

type trackStart struct {
	video  model.Video
	source model.TrackSource
}

type trackUpdate struct{ video model.Video }

type trackComplete struct{ video model.Video }

type setDefaults struct{ patch model.DefaultsPatch }

type resetError struct{}

type cancelPolling struct{}

type dropWaiter struct{ w *waiter }

type outcome struct {
	result OperationResult
	err    error
}

type waiter struct {
	kind  model.OperationKind
	start uint64
	ch    chan outcome
}

// NewOrchestrator starts the actor goroutine. Call Close to stop it.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	if deps.TrackLimit <= 0 {
		deps.TrackLimit = DefaultTrackLimit
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		deps:    deps,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		inbox:   make(chan interface{}, 64),
		done:    make(chan struct{}),
		subs:    make(map[int]func(Event)),
		waiters: make(map[*waiter]struct{}),
		st: actorState{
			state:     StateIdle,
			tracked:   make(map[string]model.TrackedJob),
			summaries: make(map[string]*model.CostSummary),
			defaults:  deps.Defaults,
		},
	}
	o.current.Store(o.buildSnapshot())
	go o.run()
	return o
}

// Snapshot returns the latest published state.
func (o *Orchestrator) Snapshot() Snapshot {
	return *o.current.Load()
}

// Subscribe registers fn for every transition. fn runs on the actor goroutine
// and must not block.
func (o *Orchestrator) Subscribe(fn func(Event)) (unsubscribe func()) {
	o.subMu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.subMu.Lock()
			delete(o.subs, id)
			o.subMu.Unlock()
		})
	}
}

// Close stops the actor and cancels any running operation.
func (o *Orchestrator) Close() error {
	o.cancel()
	<-o.done
	return nil
}

// Refresh lists every video and recomputes cost summaries.
func (o *Orchestrator) Refresh(ctx context.Context, params model.ListParams) (*RefreshResult, error) {
	res, err := o.dispatch(ctx, model.OpRefresh, func(fc flowContext) (OperationResult, error) {
		return o.refreshFlow(fc, params)
	})
	if err != nil {
		return nil, err
	}
	return res.(*RefreshResult), nil
}

// Create submits a video and optionally watches it until it finishes.
func (o *Orchestrator) Create(ctx context.Context, req model.CreateRequest) (*CreateResult, error) {
	res, err := o.dispatch(ctx, model.OpCreate, func(fc flowContext) (OperationResult, error) {
		return o.createFlow(fc, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*CreateResult), nil
}

// Remix derives a video from an existing one.
func (o *Orchestrator) Remix(ctx context.Context, req model.RemixRequest) (*RemixResult, error) {
	res, err := o.dispatch(ctx, model.OpRemix, func(fc flowContext) (OperationResult, error) {
		return o.remixFlow(fc, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*RemixResult), nil
}

// Download fetches assets of a video to disk.
func (o *Orchestrator) Download(ctx context.Context, req model.DownloadRequest) (*DownloadResult, error) {
	res, err := o.dispatch(ctx, model.OpDownload, func(fc flowContext) (OperationResult, error) {
		return o.downloadFlow(fc, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*DownloadResult), nil
}

// Delete removes a video remotely and from the local list.
func (o *Orchestrator) Delete(ctx context.Context, req model.DeleteRequest) (*DeleteResult, error) {
	res, err := o.dispatch(ctx, model.OpDelete, func(fc flowContext) (OperationResult, error) {
		return o.deleteFlow(fc, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*DeleteResult), nil
}

// LoadCurrency re-resolves the preferred currency formatter.
func (o *Orchestrator) LoadCurrency(ctx context.Context) (*CurrencyResult, error) {
	res, err := o.dispatch(ctx, model.OpCurrency, func(fc flowContext) (OperationResult, error) {
		return o.currencyFlow(fc)
	})
	if err != nil {
		return nil, err
	}
	return res.(*CurrencyResult), nil
}

// SetDefaults merges patch into the defaults used by later operations.
func (o *Orchestrator) SetDefaults(ctx context.Context, patch model.DefaultsPatch) error {
	return o.send(ctx, setDefaults{patch: patch})
}

// ResetError clears the error left by the last failed operation.
func (o *Orchestrator) ResetError(ctx context.Context) error {
	return o.send(ctx, resetError{})
}

// CancelPolling stops the watch loop of the running create or remix. The
// operation then completes with WatchCancelled set.
func (o *Orchestrator) CancelPolling(ctx context.Context) error {
	return o.send(ctx, cancelPolling{})
}

// dispatch sends an operation to the actor and waits for the first version
// bump that completes it.
func (o *Orchestrator) dispatch(ctx context.Context, kind model.OperationKind, run flowFunc) (OperationResult, error) {
	w := &waiter{kind: kind, ch: make(chan outcome, 1)}
	reply := make(chan error, 1)
	if err := o.send(ctx, opRequest{kind: kind, run: run, waiter: w, reply: reply}); err != nil {
		return nil, err
	}

	select {
	case err := <-reply:
		if err != nil {
			return nil, err
		}
	case <-o.done:
		return nil, ErrClosed
	}

	select {
	case out := <-w.ch:
		return out.result, out.err
	case <-ctx.Done():
		o.post(dropWaiter{w: w})
		return nil, ctx.Err()
	case <-o.done:
		return nil, ErrClosed
	}
}

func (o *Orchestrator) send(ctx context.Context, msg interface{}) error {
	select {
	case o.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrClosed
	}
}

// post is used by running operations; it gives up once the actor is gone.
func (o *Orchestrator) post(msg interface{}) {
	select {
	case o.inbox <- msg:
	case <-o.done:
	}
}

func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		select {
		case <-o.ctx.Done():
			for w := range o.waiters {
				w.ch <- outcome{err: ErrClosed}
			}
			return
		case msg := <-o.inbox:
			o.handle(msg)
		}
	}
}

func (o *Orchestrator) handle(msg interface{}) {
	switch m := msg.(type) {
	case opRequest:
		o.accept(m)
	case opDone:
		o.complete(m)
	case trackStart:
		o.onTrackStart(m)
	case trackUpdate:
		if job, ok := o.st.tracked[m.video.ID]; ok {
			job.Video = m.video
			job.LastUpdate = o.now()
			o.st.tracked[m.video.ID] = job
			o.publish(EventTrack, &job)
		}
	case trackComplete:
		if job, ok := o.st.tracked[m.video.ID]; ok {
			now := o.now()
			job.Video = m.video
			job.LastUpdate = now
			job.CompletedAt = &now
			o.st.tracked[m.video.ID] = job
			o.publish(EventTrack, &job)
		}
	case setDefaults:
		o.st.defaults = m.patch.Apply(o.st.defaults)
		o.publish(EventState, nil)
	case resetError:
		o.st.err = ""
		o.st.lastErr = nil
		o.publish(EventState, nil)
	case cancelPolling:
		if o.cancelWatch != nil {
			o.cancelWatch()
		}
	case dropWaiter:
		delete(o.waiters, m.w)
	}
}

func (o *Orchestrator) accept(req opRequest) {
	if o.st.state != StateIdle {
		req.reply <- fmt.Errorf("%w: %s requested while %s", ErrBusy, req.kind, o.st.state)
		return
	}

	o.st.state = stateForKind[req.kind]
	o.st.err = ""
	o.st.lastErr = nil
	req.waiter.start = o.st.version
	o.waiters[req.waiter] = struct{}{}

	watchCtx, cancel := context.WithCancel(o.ctx)
	o.cancelWatch = cancel
	fc := flowContext{
		id:       uuid.New().String(),
		ctx:      o.ctx,
		watchCtx: watchCtx,
		defaults: o.st.defaults,
	}
	req.reply <- nil

	log.Printf("[Orchestrator] %s %s started", req.kind, fc.id)
	o.publish(EventState, nil)

	go func() {
		result, err := req.run(fc)
		cancel()
		o.post(opDone{kind: req.kind, id: fc.id, result: result, err: err})
	}()
}

func (o *Orchestrator) complete(d opDone) {
	o.st.version++
	o.st.state = StateIdle
	if o.cancelWatch != nil {
		o.cancelWatch()
		o.cancelWatch = nil
	}

	if d.err != nil {
		log.Printf("[Orchestrator] %s %s failed: %v", d.kind, d.id, d.err)
		o.st.err = d.err.Error()
		o.st.lastErr = d.err
	} else {
		log.Printf("[Orchestrator] %s %s completed (version %d)", d.kind, d.id, o.st.version)
		o.apply(d.result)
		o.st.last = d.result
	}

	o.publish(EventOperation, nil)
	o.resolveWaiters()
}

func (o *Orchestrator) apply(result OperationResult) {
	switch r := result.(type) {
	case *RefreshResult:
		o.st.videos = r.Videos
		o.st.summaries = r.Summaries
		if o.st.summaries == nil {
			o.st.summaries = make(map[string]*model.CostSummary)
		}
		o.st.formatter = r.Formatter
		o.st.usd = r.usd
		o.st.currencyError = r.CurrencyWarning
	case *CreateResult:
		latest := r.Initial
		if r.Final != nil {
			latest = *r.Final
		}
		o.upsertVideo(latest)
	case *RemixResult:
		latest := r.Initial
		if r.Final != nil {
			latest = *r.Final
		}
		o.upsertVideo(latest)
	case *DeleteResult:
		if r.Deleted {
			o.removeVideo(r.Request.VideoID)
		}
	case *CurrencyResult:
		o.st.formatter = r.Formatter
		o.st.usd = r.usd
		o.st.currencyError = r.Warning
	}
}

// upsertVideo moves v to the front of the list and refreshes its summary.
func (o *Orchestrator) upsertVideo(v model.Video) {
	videos := make([]model.Video, 0, len(o.st.videos)+1)
	videos = append(videos, v)
	for _, existing := range o.st.videos {
		if existing.ID != v.ID {
			videos = append(videos, existing)
		}
	}
	o.st.videos = videos

	if summary := summarizeOne(v, o.st.usd, o.st.formatter); summary != nil {
		o.st.summaries[v.ID] = summary
	}
}

func (o *Orchestrator) removeVideo(id string) {
	videos := make([]model.Video, 0, len(o.st.videos))
	for _, v := range o.st.videos {
		if v.ID != id {
			videos = append(videos, v)
		}
	}
	o.st.videos = videos
	delete(o.st.summaries, id)
}

func (o *Orchestrator) onTrackStart(m trackStart) {
	now := o.now()
	job := model.TrackedJob{
		Video:      m.video,
		Source:     m.source,
		StartedAt:  now,
		LastUpdate: now,
	}
	o.st.tracked[m.video.ID] = job

	for len(o.st.tracked) > o.deps.TrackLimit {
		oldest := ""
		var oldestAt time.Time
		for id, j := range o.st.tracked {
			if id == m.video.ID {
				continue
			}
			if oldest == "" || j.StartedAt.Before(oldestAt) {
				oldest, oldestAt = id, j.StartedAt
			}
		}
		if oldest == "" {
			break
		}
		delete(o.st.tracked, oldest)
	}
	o.publish(EventTrack, &job)
}

func (o *Orchestrator) resolveWaiters() {
	for w := range o.waiters {
		if o.st.version <= w.start {
			continue
		}
		switch {
		case o.st.lastErr != nil:
			w.ch <- outcome{err: o.st.lastErr}
		case o.st.last != nil && o.st.last.Kind() == w.kind:
			w.ch <- outcome{result: o.st.last}
		default:
			continue
		}
		delete(o.waiters, w)
	}
}

func (o *Orchestrator) buildSnapshot() *Snapshot {
	videos := make([]model.Video, len(o.st.videos))
	copy(videos, o.st.videos)
	tracked := make(map[string]model.TrackedJob, len(o.st.tracked))
	for k, v := range o.st.tracked {
		tracked[k] = v
	}
	summaries := make(map[string]*model.CostSummary, len(o.st.summaries))
	for k, v := range o.st.summaries {
		summaries[k] = v
	}
	snap := &Snapshot{
		State:            o.st.state,
		Videos:           videos,
		TrackedJobs:      tracked,
		CostSummaries:    summaries,
		Formatter:        o.st.formatter,
		CurrencyError:    o.st.currencyError,
		Defaults:         o.st.defaults,
		OperationVersion: o.st.version,
		LastOperation:    o.st.last,
		Error:            o.st.err,
	}
	if o.st.formatter != nil {
		snap.PreferredCurrency = o.st.formatter.Currency()
	}
	return snap
}

func (o *Orchestrator) publish(kind EventType, job *model.TrackedJob) {
	snap := o.buildSnapshot()
	o.current.Store(snap)

	o.subMu.RLock()
	fns := make([]func(Event), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.subMu.RUnlock()

	ev := Event{Type: kind, Snapshot: *snap, Job: job}
	for _, fn := range fns {
		fn(ev)
	}
}
