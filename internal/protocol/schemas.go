package protocol

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	SchemaTilesReq = "tiles_req.schema.json"
	SchemaTile     = "tile.schema.json"
	SchemaWelcome  = "welcome.schema.json"
)

var schemas = map[string]*jsonschema.Schema{
	SchemaTilesReq: mustCompile(SchemaTilesReq),
	SchemaTile:     mustCompile(SchemaTile),
	SchemaWelcome:  mustCompile(SchemaWelcome),
}

func mustCompile(name string) *jsonschema.Schema {
	b, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(err)
	}
	return jsonschema.MustCompileString(name, string(b))
}

// Validate checks raw JSON against one of the embedded message schemas.
func Validate(schema string, raw []byte) error {
	s, ok := schemas[schema]
	if !ok {
		return fmt.Errorf("unknown schema %q", schema)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

// DecodeTilesReq validates and decodes a TILES request.
func DecodeTilesReq(raw []byte) (TilesReq, error) {
	var req TilesReq
	if err := Validate(SchemaTilesReq, raw); err != nil {
		return req, err
	}
	err := json.Unmarshal(raw, &req)
	return req, err
}
