package services

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/data/repos"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/apperr"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

// AgentResolver establishes who a metadata entry is attributed to. When the
// submission names an extractor, the extractor release owns the entry and
// the caller is recorded for audit only; the same human running two
// extractor runs must not fragment the extractor's metadata.
type AgentResolver interface {
	Resolve(dbc dbctx.Context, extractor *types.ExtractorIdentity, callerID uuid.UUID) (types.Agent, error)
}

type agentResolver struct {
	log           *logger.Logger
	extractorRepo repos.ExtractorRepo
}

func NewAgentResolver(baseLog *logger.Logger, extractorRepo repos.ExtractorRepo) AgentResolver {
	serviceLog := baseLog.With("service", "AgentResolver")
	return &agentResolver{log: serviceLog, extractorRepo: extractorRepo}
}

func (ar *agentResolver) Resolve(dbc dbctx.Context, extractor *types.ExtractorIdentity, callerID uuid.UUID) (types.Agent, error) {
	const op = "AgentResolver.Resolve"

	if callerID == uuid.Nil {
		return types.Agent{}, apperr.New(apperr.CodeValidation, op, "caller identity is required", nil)
	}
	if extractor == nil {
		return types.Agent{CreatorID: callerID}, nil
	}

	name := strings.TrimSpace(extractor.Name)
	version := strings.TrimSpace(extractor.Version)
	if name == "" || version == "" {
		return types.Agent{}, apperr.New(apperr.CodeValidation, op,
			"extractor name and version are both required", nil)
	}

	reg, err := ar.extractorRepo.GetByNameVersion(dbc, name, version)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Agent{}, apperr.Newf(apperr.CodeExtractorNotFound, op,
				"extractor %s/%s is not registered", name, version)
		}
		ar.log.Error("extractor lookup failed", "name", name, "version", version, "error", err)
		return types.Agent{}, apperr.MapStoreError(op, err)
	}

	identity := reg.Identity()
	return types.Agent{CreatorID: callerID, Extractor: &identity}, nil
}
