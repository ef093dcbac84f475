package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"fiscaal-rapportage/internal/config"
)

// RetentionService runs the scheduled retention sweep: exported dossiers are
// archived after a grace period and finished express jobs are moved from the
// in-memory registry to the job archive.
type RetentionService struct {
	store   DossierStore
	express *ExpressService
	archive JobArchive // may be nil when MongoDB is not configured
	cfg     config.RetentionConfig
	cron    *cron.Cron
}

// NewRetentionService creates a new retention service
func NewRetentionService(store DossierStore, express *ExpressService, archive JobArchive, cfg config.RetentionConfig) *RetentionService {
	// Create cron with seconds precision
	return &RetentionService{
		store:   store,
		express: express,
		archive: archive,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}
}

// Start schedules and starts the sweep
func (s *RetentionService) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("Retention sweep scheduled: %s", s.cfg.SweepSchedule)
	return nil
}

// Stop stops the cron scheduler
func (s *RetentionService) Stop() {
	s.cron.Stop()
	log.Println("Retention sweep scheduler stopped")
}

// Sweep performs one retention pass
func (s *RetentionService) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.ArchiveAfterDays)
	archived, err := s.store.ArchiveExportedBefore(ctx, cutoff)
	if err != nil {
		log.Printf("ERROR: retention sweep failed to archive dossiers: %v", err)
	} else if archived > 0 {
		log.Printf("Retention sweep archived %d exported dossiers", archived)
	}

	purged := s.express.PurgeFinished(time.Duration(s.cfg.JobTTLMinutes) * time.Minute)
	for _, job := range purged {
		if s.archive == nil {
			continue
		}
		if err := s.archive.ArchiveExpressJob(ctx, job); err != nil {
			log.Printf("WARNING: failed to archive express job %s: %v", job.ID, err)
		}
	}
	if len(purged) > 0 {
		log.Printf("Retention sweep purged %d finished express jobs", len(purged))
	}
}
