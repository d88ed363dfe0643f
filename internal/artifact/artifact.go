// Package artifact writes and reads the immutable JSON artifacts the
// training pipeline produces (datasets, models). Every artifact is a
// new file, never overwritten, and reads are validated against an
// embedded JSON Schema before decoding.
package artifact

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Embedded schema names.
const (
	DatasetSchema = "dataset.schema.json"
	ModelSchema   = "model.schema.json"
)

// #region compile

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemaFor(name string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[string]*jsonschema.Schema)
		for _, n := range []string{DatasetSchema, ModelSchema} {
			raw, err := schemaFS.ReadFile("schemas/" + n)
			if err != nil {
				compileErr = fmt.Errorf("read embedded schema %s: %w", n, err)
				return
			}
			compiler := jsonschema.NewCompiler()
			if err := compiler.AddResource(n, bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", n, err)
				return
			}
			sch, err := compiler.Compile(n)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", n, err)
				return
			}
			compiled[n] = sch
		}
	})
	if compileErr != nil {
		return nil, compileErr
	}
	sch, ok := compiled[name]
	if !ok {
		return nil, fmt.Errorf("no embedded schema named %s", name)
	}
	return sch, nil
}

// #endregion compile

// #region write

// WriteJSON marshals v and writes it to path exclusively: an existing
// file is an error, which is what makes artifacts immutable.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync artifact %s: %w", path, err)
	}
	return nil
}

// #endregion write

// #region read

// ReadJSON reads path, validates the payload against the named embedded
// schema, and decodes it into out.
func ReadJSON(path, schemaName string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}

	sch, err := schemaFor(schemaName)
	if err != nil {
		return err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parse artifact %s: %w", path, err)
	}
	if err := sch.Validate(payload); err != nil {
		return fmt.Errorf("artifact %s failed %s validation: %w", path, schemaName, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return nil
}

// #endregion read
