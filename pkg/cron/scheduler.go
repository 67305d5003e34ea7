// Package cron sweeps an inbox directory for statements on a schedule using
// robfig/cron.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// Subdirectories of the inbox that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

var supportedExtensions = map[string]struct{}{
	".csv":  {},
	".txt":  {},
	".xlsx": {},
}

// FileImporter imports one statement file.
type FileImporter interface {
	ImportFile(ctx context.Context, path string) error
}

// Config configures the inbox sweeper.
type Config struct {
	Dir string
	// Schedule is a standard 5-field cron expression.
	Schedule string
	// FilesPerSecond paces imports within a sweep. Zero means unlimited.
	FilesPerSecond float64
	// SweepTimeout bounds one sweep. Defaults to 30 minutes.
	SweepTimeout time.Duration
}

// SweepResult reports one pass over the inbox.
type SweepResult struct {
	Processed []string
	Failed    []string
}

// Scheduler imports statements dropped into an inbox directory.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	importer FileImporter
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewScheduler creates a new inbox scheduler.
func NewScheduler(cfg Config, importer FileImporter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = 30 * time.Minute
	}

	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	limit := rate.Inf
	if cfg.FilesPerSecond > 0 {
		limit = rate.Limit(cfg.FilesPerSecond)
	}

	return &Scheduler{
		cron:     c,
		cfg:      cfg,
		importer: importer,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// Start registers the sweep and starts the cron loop.
func (s *Scheduler) Start() error {
	if err := ensureDirs(s.cfg.Dir); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.runSweep); err != nil {
		return fmt.Errorf("invalid inbox schedule %q: %w", s.cfg.Schedule, err)
	}

	s.cron.Start()
	s.logger.Info("inbox scheduler started",
		slog.String("dir", s.cfg.Dir),
		slog.String("schedule", s.cfg.Schedule),
	)
	return nil
}

// Stop stops the scheduler. The returned context is done once a running
// sweep has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("inbox scheduler stopping")
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SweepTimeout)
	defer cancel()

	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("inbox sweep failed", slog.Any("error", err))
	}
}

// Sweep imports every supported file currently in the inbox, oldest name
// first, and moves each one to processed/ or failed/.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepResult, error) {
	if err := ensureDirs(s.cfg.Dir); err != nil {
		return nil, err
	}

	files, err := pendingFiles(s.cfg.Dir)
	if err != nil {
		return nil, err
	}
	result := &SweepResult{}
	if len(files) == 0 {
		return result, nil
	}

	s.logger.Info("inbox sweep started", slog.Int("files", len(files)))
	for _, name := range files {
		if err := s.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("inbox sweep interrupted: %w", err)
		}

		path := filepath.Join(s.cfg.Dir, name)
		target := ProcessedDir
		if err := s.importer.ImportFile(ctx, path); err != nil {
			s.logger.Warn("statement import failed",
				slog.String("file", name),
				slog.Any("error", err),
			)
			target = FailedDir
		}

		if err := moveFile(path, filepath.Join(s.cfg.Dir, target)); err != nil {
			return result, err
		}
		if target == FailedDir {
			result.Failed = append(result.Failed, name)
		} else {
			result.Processed = append(result.Processed, name)
		}
	}

	s.logger.Info("inbox sweep completed",
		slog.Int("processed", len(result.Processed)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func ensureDirs(dir string) error {
	if dir == "" {
		return errors.New("inbox directory is not configured")
	}
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}
	return nil
}

func pendingFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, ok := supportedExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// moveFile moves path into dir, suffixing the name when it is taken.
func moveFile(path, dir string) error {
	base := filepath.Base(path)
	target := filepath.Join(dir, base)
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(base)
		target = filepath.Join(dir, fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), time.Now().UnixNano(), ext))
	}
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("failed to move %s: %w", base, err)
	}
	return nil
}
