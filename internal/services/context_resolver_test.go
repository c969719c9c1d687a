package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/apperr"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func testDbc() dbctx.Context {
	return dbctx.Context{Ctx: context.Background()}
}

func registerDefinition(t *testing.T, repo *fakeDefinitionRepo, name string, decls []types.FieldDecl) {
	t.Helper()
	raw, err := types.EncodeFieldDecls(decls)
	if err != nil {
		t.Fatalf("encode decls: %v", err)
	}
	def := &types.MetadataDefinition{ID: uuid.New(), Name: name, Fields: raw}
	if _, err := repo.Create(testDbc(), []*types.MetadataDefinition{def}); err != nil {
		t.Fatalf("register definition: %v", err)
	}
}

func TestContextResolverRequiresExactlyOneSource(t *testing.T) {
	cr := NewContextResolver(testLogger(t), newFakeDefinitionRepo())

	_, _, err := cr.Resolve(testDbc(), types.ContextSource{}, map[string]any{})
	if !apperr.IsCode(err, apperr.CodeInvalidContext) {
		t.Fatalf("no source: want invalid_context, got %v", err)
	}

	_, _, err = cr.Resolve(testDbc(), types.ContextSource{
		URL:        "https://schema.org/",
		Definition: "basic",
	}, map[string]any{})
	if !apperr.IsCode(err, apperr.CodeAmbiguousContext) {
		t.Fatalf("two sources: want ambiguous_context, got %v", err)
	}
}

func TestContextResolverRejectsBadURLAndEmptyInline(t *testing.T) {
	cr := NewContextResolver(testLogger(t), newFakeDefinitionRepo())

	_, _, err := cr.Resolve(testDbc(), types.ContextSource{URL: "not a url"}, nil)
	if !apperr.IsCode(err, apperr.CodeInvalidContext) {
		t.Fatalf("relative url: want invalid_context, got %v", err)
	}
	_, _, err = cr.Resolve(testDbc(), types.ContextSource{URL: "ftp://example.com/ctx"}, nil)
	if !apperr.IsCode(err, apperr.CodeInvalidContext) {
		t.Fatalf("ftp url: want invalid_context, got %v", err)
	}
	_, _, err = cr.Resolve(testDbc(), types.ContextSource{Inline: map[string]any{}}, nil)
	if !apperr.IsCode(err, apperr.CodeInvalidContext) {
		t.Fatalf("empty inline: want invalid_context, got %v", err)
	}
}

func TestContextResolverUnknownDefinition(t *testing.T) {
	cr := NewContextResolver(testLogger(t), newFakeDefinitionRepo())

	_, _, err := cr.Resolve(testDbc(), types.ContextSource{Definition: "missing"}, map[string]any{})
	if !apperr.IsCode(err, apperr.CodeDefinitionNotFound) {
		t.Fatalf("want definition_not_found, got %v", err)
	}
}

func TestContextResolverCoercesDeclaredFields(t *testing.T) {
	defs := newFakeDefinitionRepo()
	registerDefinition(t, defs, "scan", []types.FieldDecl{
		{Field: "pages", Type: types.FieldTypeNumber},
		{Field: "scanned", Type: types.FieldTypeDate},
		{Field: "color", Type: types.FieldTypeBoolean},
	})
	cr := NewContextResolver(testLogger(t), defs)

	src, content, err := cr.Resolve(testDbc(), types.ContextSource{Definition: "scan"}, map[string]any{
		"pages":   "42",
		"scanned": "2024-03-01T10:30:00+02:00",
		"color":   "true",
		"note":    "raw passthrough",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if src.Definition != "scan" {
		t.Fatalf("canonical definition: want=%q got=%q", "scan", src.Definition)
	}
	if got := content["pages"]; got != float64(42) {
		t.Fatalf("pages: want=42 got=%v (%T)", got, got)
	}
	want := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC).Format(time.RFC3339)
	if got := content["scanned"]; got != want {
		t.Fatalf("scanned: want=%q got=%v", want, got)
	}
	if got := content["color"]; got != true {
		t.Fatalf("color: want=true got=%v", got)
	}
	if got := content["note"]; got != "raw passthrough" {
		t.Fatalf("undeclared key changed: got=%v", got)
	}
}

func TestContextResolverSchemaValidationNamesField(t *testing.T) {
	defs := newFakeDefinitionRepo()
	registerDefinition(t, defs, "scan", []types.FieldDecl{
		{Field: "pages", Type: types.FieldTypeNumber},
	})
	cr := NewContextResolver(testLogger(t), defs)

	_, _, err := cr.Resolve(testDbc(), types.ContextSource{Definition: "scan"}, map[string]any{
		"pages": "abc",
	})
	if !apperr.IsCode(err, apperr.CodeSchemaValidation) {
		t.Fatalf("want schema_validation, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "pages") {
		t.Fatalf("error should name the field, got %q", got)
	}
}

func TestContextResolverNullDeclaredFieldPassesThrough(t *testing.T) {
	defs := newFakeDefinitionRepo()
	registerDefinition(t, defs, "scan", []types.FieldDecl{
		{Field: "pages", Type: types.FieldTypeNumber},
	})
	cr := NewContextResolver(testLogger(t), defs)

	_, content, err := cr.Resolve(testDbc(), types.ContextSource{Definition: "scan"}, map[string]any{
		"pages": nil,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, present := content["pages"]; !present || v != nil {
		t.Fatalf("explicit null should survive untouched, got %v (present=%v)", v, present)
	}
}

func TestContextResolverDoesNotMutateInput(t *testing.T) {
	defs := newFakeDefinitionRepo()
	registerDefinition(t, defs, "scan", []types.FieldDecl{
		{Field: "pages", Type: types.FieldTypeNumber},
	})
	cr := NewContextResolver(testLogger(t), defs)

	in := map[string]any{"pages": "42"}
	if _, _, err := cr.Resolve(testDbc(), types.ContextSource{Definition: "scan"}, in); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if in["pages"] != "42" {
		t.Fatalf("input mutated: got %v", in["pages"])
	}
}
