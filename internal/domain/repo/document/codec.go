package document

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type codec struct {
	marshal   func(v interface{}) ([]byte, error)
	unmarshal func(data []byte, v interface{}) error
}

var (
	jsonCodec = codec{
		marshal: func(v interface{}) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		},
		unmarshal: json.Unmarshal,
	}

	yamlCodec = codec{
		marshal:   yaml.Marshal,
		unmarshal: yaml.Unmarshal,
	}
)

// codecFor picks the encoding from the file extension so the document stays hand editable.
func codecFor(path string) (codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return jsonCodec, nil
	case ".yaml", ".yml":
		return yamlCodec, nil
	default:
		return codec{}, fmt.Errorf("unsupported document extension %q, expecting .json, .yaml or .yml", filepath.Ext(path))
	}
}
