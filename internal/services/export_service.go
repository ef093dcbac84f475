package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fiscaal-rapportage/internal/models"
	"fiscaal-rapportage/internal/utils"
	"fiscaal-rapportage/internal/validation"
)

// Current export document version
const exportVersion = 1

// ExportService handles dossier JSON export and schema-validated import
type ExportService struct {
	store      DossierStore
	schemaPath string
}

// NewExportService creates a new export service. schemaPath points at the
// JSON schema imported documents are validated against.
func NewExportService(store DossierStore, schemaPath string) *ExportService {
	return &ExportService{store: store, schemaPath: schemaPath}
}

// Export builds the canonical export document and marks the dossier exported
func (s *ExportService) Export(ctx context.Context, dossierID string) (*models.DossierExport, error) {
	dossier, err := s.store.GetDossier(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	if dossier == nil {
		return nil, fmt.Errorf("%w: dossier %s", ErrNotFound, dossierID)
	}

	// Exporting is a status transition, except for archived dossiers which
	// stay read-only
	if dossier.Status != models.DossierStatusArchived {
		dossier.Status = models.DossierStatusExported
		dossier.UpdatedAt = time.Now().UTC()
		if err := s.store.UpdateDossier(ctx, dossier); err != nil {
			return nil, err
		}
	}

	return &models.DossierExport{
		ExportVersion: exportVersion,
		ExportedAt:    utils.FormatTimestamp(time.Now()),
		Dossier:       *dossier,
	}, nil
}

// Import validates an export document and stores it as a new dossier with a
// fresh ID. The original ID, if any, is discarded.
func (s *ExportService) Import(ctx context.Context, data []byte) (*models.Dossier, error) {
	if err := validation.ValidateAgainstFile(data, s.schemaPath); err != nil {
		return nil, fmt.Errorf("invalid import document: %w", err)
	}

	var export models.DossierExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse import document: %w", err)
	}
	if export.ExportVersion > exportVersion {
		return nil, fmt.Errorf("unsupported export version %d", export.ExportVersion)
	}

	dossier := export.Dossier.Clone()
	dossier.ID = utils.GenerateUUID()
	dossier.ExpressJobID = ""
	if !models.ValidDossierStatus(dossier.Status) || dossier.Status == models.DossierStatusProcessing {
		dossier.Status = models.DossierStatusDraft
	}
	now := time.Now().UTC()
	dossier.CreatedAt = now
	dossier.UpdatedAt = now

	if err := s.store.InsertDossier(ctx, dossier); err != nil {
		return nil, err
	}
	return dossier, nil
}
