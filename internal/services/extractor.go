package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/data/repos"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/apperr"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type ExtractorInput struct {
	Name        string
	Version     string
	Description string
}

// ExtractorService manages the registry of automated agents. Only
// registered (name, version) pairs may author extractor metadata.
type ExtractorService interface {
	Register(dbc dbctx.Context, in ExtractorInput) (*types.Extractor, error)
	Lookup(dbc dbctx.Context, name, version string) (*types.Extractor, error)
	List(dbc dbctx.Context, name string, skip, limit int) ([]*types.Extractor, error)
}

type extractorService struct {
	db            *gorm.DB
	log           *logger.Logger
	extractorRepo repos.ExtractorRepo
}

func NewExtractorService(db *gorm.DB, baseLog *logger.Logger, extractorRepo repos.ExtractorRepo) ExtractorService {
	serviceLog := baseLog.With("service", "ExtractorService")
	return &extractorService{db: db, log: serviceLog, extractorRepo: extractorRepo}
}

func (es *extractorService) Register(dbc dbctx.Context, in ExtractorInput) (*types.Extractor, error) {
	const op = "ExtractorService.Register"

	name := strings.TrimSpace(in.Name)
	version := strings.TrimSpace(in.Version)
	if name == "" || version == "" {
		return nil, apperr.New(apperr.CodeValidation, op,
			"extractor name and version are both required", nil)
	}

	now := time.Now()
	ex := &types.Extractor{
		ID:          uuid.New(),
		Name:        name,
		Version:     version,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := es.extractorRepo.Create(dbc, []*types.Extractor{ex}); err != nil {
		es.log.Error("Register failed", "name", name, "version", version, "error", err)
		return nil, apperr.MapStoreError(op, err)
	}
	return ex, nil
}

func (es *extractorService) Lookup(dbc dbctx.Context, name, version string) (*types.Extractor, error) {
	const op = "ExtractorService.Lookup"

	ex, err := es.extractorRepo.GetByNameVersion(dbc, strings.TrimSpace(name), strings.TrimSpace(version))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeExtractorNotFound, op,
				"extractor %s/%s is not registered", name, version)
		}
		return nil, apperr.MapStoreError(op, err)
	}
	return ex, nil
}

func (es *extractorService) List(dbc dbctx.Context, name string, skip, limit int) ([]*types.Extractor, error) {
	const op = "ExtractorService.List"

	extractors, err := es.extractorRepo.List(dbc, strings.TrimSpace(name), skip, limit)
	if err != nil {
		return nil, apperr.MapStoreError(op, err)
	}
	return extractors, nil
}
