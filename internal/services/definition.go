package services

import (
	"errors"
	"fmt"
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

type DefinitionInput struct {
	Name        string
	Description string
	Context     map[string]any
	Fields      []types.FieldDecl
}

// DefinitionService manages the registry of named metadata definitions. The
// metadata core only reads it; registration and removal are operator
// concerns (seeded from YAML by cmd/seed_definitions).
type DefinitionService interface {
	Register(dbc dbctx.Context, in DefinitionInput) (*types.MetadataDefinition, error)
	GetByName(dbc dbctx.Context, name string) (*types.MetadataDefinition, error)
	List(dbc dbctx.Context, skip, limit int) ([]*types.MetadataDefinition, error)
	Delete(dbc dbctx.Context, name string) error
}

type definitionService struct {
	db             *gorm.DB
	log            *logger.Logger
	definitionRepo repos.MetadataDefinitionRepo
}

func NewDefinitionService(db *gorm.DB, baseLog *logger.Logger, definitionRepo repos.MetadataDefinitionRepo) DefinitionService {
	serviceLog := baseLog.With("service", "DefinitionService")
	return &definitionService{db: db, log: serviceLog, definitionRepo: definitionRepo}
}

func (ds *definitionService) Register(dbc dbctx.Context, in DefinitionInput) (*types.MetadataDefinition, error) {
	const op = "DefinitionService.Register"

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.New(apperr.CodeValidation, op, "definition name is required", nil)
	}
	if err := types.ValidateFieldDecls(in.Fields); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, op, err)
	}

	fieldsRaw, err := types.EncodeFieldDecls(in.Fields)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("encode field declarations: %w", err))
	}

	now := time.Now()
	def := &types.MetadataDefinition{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Fields:      fieldsRaw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Context != nil {
		ctxRaw, err := types.EncodeJSONMap(in.Context)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("encode context: %w", err))
		}
		def.ContextJSON = ctxRaw
	}

	if _, err := ds.definitionRepo.Create(dbc, []*types.MetadataDefinition{def}); err != nil {
		ds.log.Error("Register failed", "name", name, "error", err)
		return nil, apperr.MapStoreError(op, err)
	}
	return def, nil
}

func (ds *definitionService) GetByName(dbc dbctx.Context, name string) (*types.MetadataDefinition, error) {
	const op = "DefinitionService.GetByName"

	def, err := ds.definitionRepo.GetByName(dbc, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeDefinitionNotFound, op,
				"metadata definition %q is not registered", name)
		}
		return nil, apperr.MapStoreError(op, err)
	}
	return def, nil
}

func (ds *definitionService) List(dbc dbctx.Context, skip, limit int) ([]*types.MetadataDefinition, error) {
	const op = "DefinitionService.List"

	defs, err := ds.definitionRepo.List(dbc, skip, limit)
	if err != nil {
		return nil, apperr.MapStoreError(op, err)
	}
	return defs, nil
}

func (ds *definitionService) Delete(dbc dbctx.Context, name string) error {
	const op = "DefinitionService.Delete"

	rows, err := ds.definitionRepo.DeleteByName(dbc, strings.TrimSpace(name))
	if err != nil {
		ds.log.Error("Delete failed", "name", name, "error", err)
		return apperr.MapStoreError(op, err)
	}
	if rows == 0 {
		return apperr.Newf(apperr.CodeDefinitionNotFound, op,
			"metadata definition %q is not registered", name)
	}
	return nil
}
