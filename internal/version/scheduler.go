package version

import (
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// WatermarkSource supplies the oldest snapshot timestamp any active
// transaction still depends on. The caller of NewScheduler supplies the
// implementation; no type in this module implements it.
type WatermarkSource interface {
	GCWatermark() uint64
}

// Scheduler periodically runs Sync across a set of registered files
// on a cron schedule, driving the version layer's reclaim sweep in
// the background.
type Scheduler struct {
	mu        sync.Mutex
	cron      *cron.Cron
	files     map[string]*File
	watermark WatermarkSource
	budget    SyncBudget
	log       *zap.Logger
	entryID   cron.EntryID
}

// NewScheduler creates a Scheduler; Start supplies its schedule.
func NewScheduler(watermark WatermarkSource, budget SyncBudget, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:      cron.New(),
		files:     make(map[string]*File),
		watermark: watermark,
		budget:    budget,
		log:       logger,
	}
}

// Register adds a file to the sweep under name (its logical-file path
// triple identifier).
func (s *Scheduler) Register(name string, f *File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = f
}

// Unregister removes a file from the sweep, e.g. on Unmount.
func (s *Scheduler) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
}

// Start begins the cron-driven sweep on the given schedule spec, a
// standard cron expression (e.g. "@every 30s").
func (s *Scheduler) Start(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.cron.AddFunc(spec, s.sweepOnce)
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()
	return nil
}

// Stop halts the cron scheduler and waits for an in-flight sweep to
// finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Scheduler) sweepOnce() {
	s.mu.Lock()
	files := make(map[string]*File, len(s.files))
	for k, v := range s.files {
		files[k] = v
	}
	watermark := s.watermark.GCWatermark()
	budget := s.budget
	s.mu.Unlock()

	for name, f := range files {
		res, err := f.Sync(watermark, budget)
		if err != nil {
			s.log.Warn("version sync failed", zap.String("file", name), zap.Error(err))
			continue
		}
		if res.Modified {
			s.log.Debug("version sync reclaimed entries", zap.String("file", name), zap.Bool("incomplete", res.Incomplete))
		}
	}
}
