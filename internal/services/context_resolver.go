package services

import (
	"errors"
	"fmt"
	"net/url"

	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/data/repos"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/apperr"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

// ContextResolver turns a metadata submission's context source into the
// canonical descriptor stored with the entry, and validates/coerces the
// submitted content against it. Exactly one source must be set; a named
// definition additionally supplies typed field declarations.
type ContextResolver interface {
	Resolve(dbc dbctx.Context, src types.ContextSource, content map[string]any) (types.ContextSource, map[string]any, error)
}

type contextResolver struct {
	log            *logger.Logger
	definitionRepo repos.MetadataDefinitionRepo
}

func NewContextResolver(baseLog *logger.Logger, definitionRepo repos.MetadataDefinitionRepo) ContextResolver {
	serviceLog := baseLog.With("service", "ContextResolver")
	return &contextResolver{log: serviceLog, definitionRepo: definitionRepo}
}

func (cr *contextResolver) Resolve(dbc dbctx.Context, src types.ContextSource, content map[string]any) (types.ContextSource, map[string]any, error) {
	const op = "ContextResolver.Resolve"

	switch n := src.Count(); {
	case n == 0:
		return types.ContextSource{}, nil, apperr.New(apperr.CodeInvalidContext, op,
			"one of context, context_url or definition is required", nil)
	case n > 1:
		return types.ContextSource{}, nil, apperr.New(apperr.CodeAmbiguousContext, op,
			"context, context_url and definition are mutually exclusive", nil)
	}

	var decls []types.FieldDecl
	switch {
	case src.Definition != "":
		def, err := cr.definitionRepo.GetByName(dbc, src.Definition)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.ContextSource{}, nil, apperr.Newf(apperr.CodeDefinitionNotFound, op,
					"metadata definition %q is not registered", src.Definition)
			}
			cr.log.Error("definition lookup failed", "definition", src.Definition, "error", err)
			return types.ContextSource{}, nil, apperr.MapStoreError(op, err)
		}
		decls, err = def.FieldDecls()
		if err != nil {
			return types.ContextSource{}, nil, apperr.Wrap(apperr.CodeInternal, op,
				fmt.Errorf("decode field declarations of %q: %w", src.Definition, err))
		}
	case src.URL != "":
		u, err := url.Parse(src.URL)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return types.ContextSource{}, nil, apperr.Newf(apperr.CodeInvalidContext, op,
				"context_url %q is not an absolute http(s) URL", src.URL)
		}
	default:
		if len(src.Inline) == 0 {
			return types.ContextSource{}, nil, apperr.New(apperr.CodeInvalidContext, op,
				"inline context must be a non-empty object", nil)
		}
	}

	validated, err := cr.coerceContent(decls, content)
	if err != nil {
		return types.ContextSource{}, nil, err
	}
	return src, validated, nil
}

// coerceContent applies the declared field types to the submitted content.
// Keys without a declaration pass through verbatim; content beyond the
// declared vocabulary is allowed by design.
func (cr *contextResolver) coerceContent(decls []types.FieldDecl, content map[string]any) (map[string]any, error) {
	const op = "ContextResolver.Resolve"

	out := make(map[string]any, len(content))
	for k, v := range content {
		out[k] = v
	}
	for _, d := range decls {
		v, present := out[d.Field]
		if !present {
			continue
		}
		coerced, err := types.CoerceFieldValue(d.Type, v)
		if err != nil {
			return nil, apperr.Newf(apperr.CodeSchemaValidation, op,
				"field %q: %v", d.Field, err)
		}
		out[d.Field] = coerced
	}
	return out, nil
}
