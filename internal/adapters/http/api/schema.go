package api

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 20

var (
	//go:embed schema/series.schema.json
	seriesSchemaJSON string
	//go:embed schema/tle.schema.json
	tleSchemaJSON string
	//go:embed schema/shortarc.schema.json
	shortArcSchemaJSON string

	seriesSchema   = jsonschema.MustCompileString("series.schema.json", seriesSchemaJSON)
	tleSchema      = jsonschema.MustCompileString("tle.schema.json", tleSchemaJSON)
	shortArcSchema = jsonschema.MustCompileString("shortarc.schema.json", shortArcSchemaJSON)
)

// decodeJSON reads the request body, validates it against schema and
// decodes it into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse body: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("validate body: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
