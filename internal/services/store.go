package services

import (
	"context"
	"time"

	"fiscaal-rapportage/internal/models"
)

// DossierStore abstracts dossier persistence so services work against MongoDB
// in production and the in-memory store in tests and Mongo-less runs.
type DossierStore interface {
	InsertDossier(ctx context.Context, dossier *models.Dossier) error
	// GetDossier returns (nil, nil) when the dossier does not exist.
	GetDossier(ctx context.Context, id string) (*models.Dossier, error)
	UpdateDossier(ctx context.Context, dossier *models.Dossier) error
	// DeleteDossier returns false when the dossier did not exist.
	DeleteDossier(ctx context.Context, id string) (bool, error)
	ListDossiers(ctx context.Context, opts models.ListOptions) ([]models.Dossier, int64, error)
	ArchiveExportedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobArchive persists finished express jobs for audit before they are purged
// from the in-memory registry.
type JobArchive interface {
	ArchiveExpressJob(ctx context.Context, job *models.ExpressJob) error
}
