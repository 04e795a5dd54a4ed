// Package registry owns the set of active and ended backup pairs and
// the goroutine lifecycle of their mirror workers. It plays the role
// mutagen's synchronization controller plays for sessions: one record
// per managed pair, a lifecycle lock guarding start/stop transitions,
// and a done channel the owning goroutine closes on exit.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spdsslg/backup-automation/pkg/logging"
	"github.com/spdsslg/backup-automation/pkg/mirror"
	"github.com/spdsslg/backup-automation/pkg/pathutil"
)

// Record is a single (source, target) pair's BackupRecord, per
// spec.md §3: the canonical paths, when the worker started, whether
// it's still running, and the machinery needed to stop it and wait
// for it to exit.
type Record struct {
	ID        uuid.UUID
	Src       string
	Dst       string
	CreatedAt time.Time

	// lifecycleLock guards Active, stop, and done exactly as mutagen's
	// controller guards its own cancel/done pair: only the holder may
	// flip Active or send to stop.
	lifecycleLock sync.Mutex
	Active        bool
	stop          *mirror.StopFlag
	done          chan struct{}
	runErr        error
}

// Snapshot is an immutable copy of a Record's externally visible
// fields, safe to hand to the shell for `list` without exposing the
// lifecycle lock.
type Snapshot struct {
	ID        uuid.UUID
	Src       string
	Dst       string
	CreatedAt time.Time
	Active    bool
	RunError  error
}

// Registry is the process-wide set of records, one per pair ever
// added in this session (ended pairs are kept for restore per
// spec.md §6.1: "end ... keep their mirrors for future restore").
type Registry struct {
	mu      sync.Mutex
	records []*Record
	logger  *logging.Logger
	tuning  mirror.Tuning
}

// New returns an empty Registry using spec.md's literal tuning
// defaults for every worker it spawns.
func New(logger *logging.Logger) *Registry {
	return NewTuned(logger, mirror.DefaultTuning())
}

// NewTuned returns an empty Registry whose workers are constructed
// with tuning, as resolved from the optional YAML configuration file
// (pkg/config).
func NewTuned(logger *logging.Logger, tuning mirror.Tuning) *Registry {
	return &Registry{logger: logger, tuning: tuning}
}

// AddResult reports the outcome of one (source, target) pair from an
// add command, since spec.md §6.1 requires each target to be
// validated and spawned independently.
type AddResult struct {
	Target string
	Err    error
}

// Add validates and spawns a worker for every target against the
// given source, per spec.md §6.1: each target is canonicalised,
// rejected if it is inside or equal to the source, rejected if a
// worker for that exact pair already exists, and required to be empty
// or non-existent before a worker is spawned for it. One failure does
// not prevent the remaining targets from being attempted.
func (r *Registry) Add(source string, targets []string) []AddResult {
	results := make([]AddResult, 0, len(targets))

	srcReal, err := pathutil.NormalizeExistingDir(source)
	if err != nil {
		for _, target := range targets {
			results = append(results, AddResult{Target: target, Err: errors.Wrap(err, "invalid source")})
		}
		return results
	}

	for _, target := range targets {
		results = append(results, AddResult{Target: target, Err: r.addOne(srcReal, target)})
	}
	return results
}

func (r *Registry) addOne(srcReal, target string) error {
	dstReal, err := pathutil.NormalizeTargetPath(target)
	if err != nil {
		return errors.Wrap(err, "invalid target")
	}
	if pathutil.HasPrefix(dstReal, srcReal) {
		return errors.New("target is inside source")
	}
	if pathutil.HasPrefix(srcReal, dstReal) {
		return errors.New("source is inside target")
	}

	r.mu.Lock()
	for _, rec := range r.records {
		if rec.Src == srcReal && rec.Dst == dstReal {
			r.mu.Unlock()
			return errors.New("a worker for this pair already exists")
		}
	}
	r.mu.Unlock()

	if err := pathutil.EnsureEmptyTargetDir(dstReal); err != nil {
		return err
	}
	if err := pathutil.CreateEmptyDir(dstReal); err != nil {
		return err
	}

	rec := &Record{
		ID:        uuid.New(),
		Src:       srcReal,
		Dst:       dstReal,
		CreatedAt: time.Now(),
		Active:    true,
		stop:      &mirror.StopFlag{},
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	sublogger := r.logger.Sublogger(rec.ID.String()[:8])
	go r.run(rec, sublogger)

	return nil
}

func (r *Registry) run(rec *Record, logger *logging.Logger) {
	defer close(rec.done)

	logger.Infof("worker started")
	engine := mirror.NewEngineTuned(rec.Src, rec.Dst, rec.stop, logger, r.tuning)
	err := engine.Run()

	rec.lifecycleLock.Lock()
	rec.Active = false
	rec.runErr = err
	rec.lifecycleLock.Unlock()

	if err != nil && !errors.Is(err, mirror.ErrCancelled) {
		logger.Error(errors.Wrap(err, "worker exited"))
	} else {
		logger.Infof("worker stopped")
	}
}

// End stops every active worker matching source and any of targets,
// leaving their mirrors on disk for a future restore.
func (r *Registry) End(source string, targets []string) []AddResult {
	srcReal, err := pathutil.NormalizeExistingDir(source)
	if err != nil {
		srcReal = source // allow ending a source that no longer exists
	}

	results := make([]AddResult, 0, len(targets))
	for _, target := range targets {
		dstReal, err := pathutil.NormalizeTargetPath(target)
		if err != nil {
			results = append(results, AddResult{Target: target, Err: errors.Wrap(err, "invalid target")})
			continue
		}
		results = append(results, AddResult{Target: target, Err: r.stopOne(srcReal, dstReal)})
	}
	return results
}

func (r *Registry) stopOne(srcReal, dstReal string) error {
	rec := r.find(srcReal, dstReal)
	if rec == nil {
		return errors.New("no such worker")
	}
	r.halt(rec)
	return nil
}

// halt requests rec's worker stop (if active) and waits for its
// goroutine to exit, following the lock-cancel-wait sequence
// mutagen's controller.halt uses around its own cancel/done pair.
func (r *Registry) halt(rec *Record) {
	rec.lifecycleLock.Lock()
	defer rec.lifecycleLock.Unlock()
	if !rec.Active {
		return
	}
	rec.stop.Set()
	done := rec.done
	rec.lifecycleLock.Unlock()
	<-done
	rec.lifecycleLock.Lock()
}

func (r *Registry) find(srcReal, dstReal string) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Src == srcReal && rec.Dst == dstReal {
			return rec
		}
	}
	return nil
}

// Restore stops the matching worker if active and runs the restore
// engine against its captured creation time, per spec.md §4.7/§6.1.
func (r *Registry) Restore(source, target string) error {
	srcReal, err := pathutil.NormalizeExistingDir(source)
	if err != nil {
		return errors.Wrap(err, "invalid source")
	}
	dstReal, err := pathutil.NormalizeTargetPath(target)
	if err != nil {
		return errors.Wrap(err, "invalid target")
	}

	rec := r.find(srcReal, dstReal)
	if rec == nil {
		return errors.New("no such backup pair")
	}

	r.halt(rec)

	rec.lifecycleLock.Lock()
	createdAt := rec.CreatedAt
	rec.lifecycleLock.Unlock()

	return mirror.Restore(dstReal, srcReal, createdAt)
}

// List returns a snapshot of every pair ever added, active and ended.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, len(r.records))
	for i, rec := range r.records {
		rec.lifecycleLock.Lock()
		out[i] = Snapshot{
			ID:        rec.ID,
			Src:       rec.Src,
			Dst:       rec.Dst,
			CreatedAt: rec.CreatedAt,
			Active:    rec.Active,
			RunError:  rec.runErr,
		}
		rec.lifecycleLock.Unlock()
	}
	return out
}

// Shutdown stops every active worker and waits for them all to exit,
// per spec.md §6.1 `exit`: "stop all workers, then drop all state."
func (r *Registry) Shutdown() {
	r.mu.Lock()
	records := make([]*Record, len(r.records))
	copy(records, r.records)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, rec := range records {
		rec := rec
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.halt(rec)
		}()
	}
	wg.Wait()

	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}
