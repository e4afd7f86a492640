package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"iuran/internal/model"
)

const backupTimeout = 2 * time.Minute

// Snapshotter produces a full backup snapshot.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
}

// BackupScheduler writes snapshots to a directory on a cron schedule.
type BackupScheduler struct {
	source Snapshotter
	dir    string
	cron   *cron.Cron
}

// NewBackupScheduler creates a scheduler writing into dir.
func NewBackupScheduler(source Snapshotter, dir string) *BackupScheduler {
	return &BackupScheduler{
		source: source,
		dir:    dir,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
	}
}

// Start registers the job on spec and starts the cron loop.
func (s *BackupScheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			log.Printf("[BACKUP] scheduled backup failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("add backup job %q: %w", spec, err)
	}
	s.cron.Start()
	log.Printf("[BACKUP] started schedule=%q dir=%q", spec, s.dir)
	return nil
}

// Stop halts the schedule and waits for a running job.
func (s *BackupScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce takes one snapshot and writes it as backup-YYYYMMDD-HHMMSS.json, returning the path.
func (s *BackupScheduler) RunOnce(ctx context.Context) (string, error) {
	snapshot, err := s.source.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("backup-%s.json", snapshot.CreatedAt.Format("20060102-150405")))
	tmp := path + ".tmp"
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(tmp, payload, 0o640); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize backup: %w", err)
	}

	log.Printf("[BACKUP] wrote %s (%d users, %d submissions)", path, len(snapshot.Users), len(snapshot.Submissions))
	return path, nil
}
