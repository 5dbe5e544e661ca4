package trigger

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type fileFormat struct {
	Triggers []Trigger `yaml:"triggers"`
}

// Load reads a trigger table from a YAML file of the form
//
//	triggers:
//	  - name: order_cancel
//	    reply: "..."
//	    risk: false
func Load(path string) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("open triggers file: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("triggers file %s: %w", path, err)
	}
	return t, nil
}

// Decode parses a YAML trigger table. Unknown fields are rejected.
func Decode(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var ff fileFormat
	if err := dec.Decode(&ff); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no triggers defined")
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(ff.Triggers) == 0 {
		return nil, errors.New("no triggers defined")
	}
	return New(ff.Triggers)
}
