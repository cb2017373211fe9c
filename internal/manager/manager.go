package manager

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/reeledit/reeledit/internal/manager/config"
	"github.com/reeledit/reeledit/pkg/asset"
	"github.com/reeledit/reeledit/pkg/db"
	"github.com/reeledit/reeledit/pkg/ffprobe"
	"github.com/reeledit/reeledit/pkg/logger"
	"github.com/reeledit/reeledit/pkg/models"
	"github.com/reeledit/reeledit/pkg/remote"
	"github.com/reeledit/reeledit/pkg/sync"
	"github.com/reeledit/reeledit/pkg/timeline"
)

// Manager owns the long-lived pieces: the remote clients, the timeline
// builder, the reconciliation engine, and the editor's current overlay
// list. It is the single coordination point the API layer talks to.
type Manager struct {
	Config *config.Config

	Remote   *remote.Client
	Uploader *asset.Uploader
	FFProbe  ffprobe.Probe

	Builder *timeline.Builder
	Engine  *sync.Engine

	Database *db.Database

	mutex    stdsync.Mutex
	overlays []models.OverlayItem
	ranges   []models.SceneFrameRange

	buildCancel context.CancelFunc
}

var instance *Manager

func GetInstance() *Manager {
	if instance == nil {
		panic("manager not initialized")
	}
	return instance
}

// Initialize wires the full dependency graph, called once at startup. A
// database that fails to open is logged and skipped; the engine then runs
// without snapshot persistence.
func Initialize() (*Manager, error) {
	cfg, err := config.Initialize()
	if err != nil {
		return nil, fmt.Errorf("initializing configuration: %w", err)
	}

	initLog(cfg)

	instance = &Manager{
		Config:   cfg,
		Database: db.NewDatabase(),
	}

	instance.Remote = remote.NewClient(cfg.GetRemoteURL(), nil)

	uploadURL := cfg.GetUploadURL()
	if uploadURL == "" {
		uploadURL = cfg.GetRemoteURL()
	}
	instance.Uploader = asset.NewUploader(uploadURL, nil)

	if path := cfg.GetFFProbePath(); path != "" {
		instance.FFProbe.Configure(path)
	} else {
		logger.Warnf("ffprobe path not set, scene durations will use declared values")
	}

	aspect := timeline.AspectRatio(cfg.GetAspectRatio())
	if !aspect.IsValid() {
		logger.Warnf("unknown aspect ratio %q, using 16:9", cfg.GetAspectRatio())
		aspect = timeline.AspectLandscape
	}

	var prober models.DurationProber
	if cfg.GetFFProbePath() != "" {
		prober = &instance.FFProbe
	}

	instance.Builder = timeline.NewBuilder(cfg.GetFPS(), aspect, prober)
	instance.Builder.ProbeTimeout = cfg.GetProbeTimeout()

	instance.Engine = sync.NewEngine(instance.Remote, instance.Remote, instance.Uploader, cfg.GetFPS())

	if err := instance.Database.Open(cfg.GetDatabasePath()); err != nil {
		logger.Errorf("opening database at %s: %v", cfg.GetDatabasePath(), err)
	} else {
		instance.Engine.SetStore(instance.Database)

		snap, err := instance.Database.LoadSnapshot(context.Background())
		if err != nil {
			logger.Errorf("loading persisted snapshot: %v", err)
		} else if snap.Len() > 0 {
			if err := instance.Engine.Restore(snap); err != nil {
				logger.Errorf("restoring snapshot: %v", err)
			} else {
				logger.Infof("restored snapshot with %d overlays", snap.Len())
			}
		}
	}

	return instance, nil
}

func initLog(cfg *config.Config) {
	logger.Init(cfg.GetLogLevel())
}

// Overlays returns the editor's current overlay list and the scene frame
// ranges it was built against.
func (s *Manager) Overlays() ([]models.OverlayItem, []models.SceneFrameRange) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]models.OverlayItem, len(s.overlays))
	copy(out, s.overlays)
	ranges := make([]models.SceneFrameRange, len(s.ranges))
	copy(ranges, s.ranges)
	return out, ranges
}

// UpdateOverlays replaces the editor's working overlay list. The list is
// taken as-is; validation happens when it is reconciled.
func (s *Manager) UpdateOverlays(overlays []models.OverlayItem) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.overlays = make([]models.OverlayItem, len(overlays))
	copy(s.overlays, overlays)
}

// Rebuild fetches the session document and rebuilds the timeline from it. A
// rebuild started while another is in flight cancels the older one; the
// newest document wins.
func (s *Manager) Rebuild(ctx context.Context) ([]models.OverlayItem, error) {
	s.mutex.Lock()
	if s.buildCancel != nil {
		s.buildCancel()
	}
	buildCtx, cancel := context.WithCancel(ctx)
	s.buildCancel = cancel
	s.mutex.Unlock()

	scenes, err := s.Remote.Scenes(buildCtx)
	if err != nil {
		return nil, fmt.Errorf("fetching session: %w", err)
	}

	overlays, ranges, err := s.Builder.Build(buildCtx, scenes)
	if err != nil {
		return nil, fmt.Errorf("building timeline: %w", err)
	}

	s.mutex.Lock()
	s.overlays = overlays
	s.ranges = ranges
	s.mutex.Unlock()

	// First build with nothing persisted: the built list mirrors server
	// state, so it seeds the baseline.
	if s.Engine.Snapshot().Len() == 0 {
		if err := s.Engine.Seed(ctx, overlays); err != nil {
			logger.Warnf("seeding snapshot: %v", err)
		}
	}

	logger.Infof("timeline rebuilt: %d overlays over %d scenes", len(overlays), len(ranges))
	return overlays, nil
}

// saveTimeout bounds a reconciliation pass once started. The pass runs on
// its own context so a caller disconnect cannot abort it between writes.
const saveTimeout = 5 * time.Minute

// Save reconciles the editor's working overlay list against the remote
// store. The pass runs to completion or failure regardless of the caller's
// context; partial replays would leave the remote arrays in a state the
// snapshot no longer describes.
func (s *Manager) Save(ctx context.Context) error {
	s.mutex.Lock()
	current := make([]models.OverlayItem, len(s.overlays))
	copy(current, s.overlays)
	ranges := make([]models.SceneFrameRange, len(s.ranges))
	copy(ranges, s.ranges)
	s.mutex.Unlock()

	saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	return s.Engine.Reconcile(saveCtx, current, ranges)
}

func (s *Manager) Shutdown() {
	s.mutex.Lock()
	if s.buildCancel != nil {
		s.buildCancel()
		s.buildCancel = nil
	}
	s.mutex.Unlock()

	if err := s.Database.Close(); err != nil {
		logger.Errorf("closing database: %v", err)
	}
}
