package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stratalabs/strata-backend/internal/app"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/apperr"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/services"
)

type seedFile struct {
	Definitions []seedDefinition `yaml:"definitions"`
}

type seedDefinition struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Context     map[string]any `yaml:"context"`
	Fields      []seedField    `yaml:"fields"`
}

type seedField struct {
	Field string `yaml:"field"`
	Type  string `yaml:"type"`
}

func main() {
	var path string
	var replace bool
	flag.StringVar(&path, "file", "definitions.yaml", "path to the definitions seed file")
	flag.BoolVar(&replace, "replace", false, "drop and re-register definitions that already exist")
	flag.Parse()

	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("read seed file: %v\n", err)
		os.Exit(1)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		fmt.Printf("parse seed file: %v\n", err)
		os.Exit(1)
	}
	if len(seed.Definitions) == 0 {
		fmt.Println("seed file contains no definitions")
		return
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	dbc := dbctx.Context{Ctx: context.Background()}
	registered, skipped := 0, 0
	for _, def := range seed.Definitions {
		decls := make([]types.FieldDecl, 0, len(def.Fields))
		for _, f := range def.Fields {
			decls = append(decls, types.FieldDecl{Field: f.Field, Type: types.FieldType(f.Type)})
		}
		in := services.DefinitionInput{
			Name:        def.Name,
			Description: def.Description,
			Context:     def.Context,
			Fields:      decls,
		}

		_, err := application.Services.Definition.Register(dbc, in)
		if apperr.IsCode(err, apperr.CodeConflict) && replace {
			if err := application.Services.Definition.Delete(dbc, def.Name); err != nil {
				fmt.Printf("replace %q: %v\n", def.Name, err)
				os.Exit(1)
			}
			_, err = application.Services.Definition.Register(dbc, in)
		}
		switch {
		case err == nil:
			registered++
			fmt.Printf("registered %q (%d fields)\n", def.Name, len(decls))
		case apperr.IsCode(err, apperr.CodeConflict):
			skipped++
			fmt.Printf("skipped %q: already registered\n", def.Name)
		default:
			fmt.Printf("register %q: %v\n", def.Name, err)
			os.Exit(1)
		}
	}
	fmt.Printf("done: %d registered, %d skipped\n", registered, skipped)
}
