package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/data/repos/testutil"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
)

func TestMetadataDefinitionRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewMetadataDefinitionRepo(db, testutil.Logger(t))

	fields, err := types.EncodeFieldDecls([]types.FieldDecl{
		{Field: "alternateName", Type: types.FieldTypeString},
	})
	if err != nil {
		t.Fatalf("encode fields: %v", err)
	}
	contextJSON, err := types.EncodeJSONMap(map[string]any{"alternateName": "https://schema.org/alternateName"})
	if err != nil {
		t.Fatalf("encode context: %v", err)
	}

	def := &types.MetadataDefinition{
		ID:          uuid.New(),
		Name:        "alternative-title",
		Description: "an alternative name for the resource",
		ContextJSON: contextJSON,
		Fields:      fields,
	}
	if _, err := repo.Create(dbc, []*types.MetadataDefinition{def}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByName(dbc, "alternative-title")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.ID != def.ID {
		t.Fatalf("GetByName: got %s want %s", got.ID, def.ID)
	}
	decls, err := got.FieldDecls()
	if err != nil || len(decls) != 1 || decls[0].Field != "alternateName" {
		t.Fatalf("FieldDecls: err=%v decls=%v", err, decls)
	}

	if _, err := repo.GetByName(dbc, "missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetByName missing: err=%v want ErrRecordNotFound", err)
	}

	licenseFields, err := types.EncodeFieldDecls([]types.FieldDecl{
		{Field: "license", Type: types.FieldTypeString},
	})
	if err != nil {
		t.Fatalf("encode license fields: %v", err)
	}
	license := &types.MetadataDefinition{ID: uuid.New(), Name: "license", Fields: licenseFields}
	if _, err := repo.Create(dbc, []*types.MetadataDefinition{license}); err != nil {
		t.Fatalf("seed license: %v", err)
	}

	rows, err := repo.List(dbc, 0, 0)
	if err != nil || len(rows) != 2 {
		t.Fatalf("List: err=%v len=%d", err, len(rows))
	}
	if rows[0].Name != "alternative-title" || rows[1].Name != "license" {
		t.Fatalf("List order: got [%s %s]", rows[0].Name, rows[1].Name)
	}
	rows, err = repo.List(dbc, 1, 1)
	if err != nil || len(rows) != 1 || rows[0].Name != "license" {
		t.Fatalf("List skip/limit: err=%v rows=%v", err, rows)
	}

	n, err := repo.DeleteByName(dbc, "license")
	if err != nil || n != 1 {
		t.Fatalf("DeleteByName: err=%v rows=%d", err, n)
	}
	n, err = repo.DeleteByName(dbc, "license")
	if err != nil || n != 0 {
		t.Fatalf("DeleteByName again: err=%v rows=%d", err, n)
	}
}
