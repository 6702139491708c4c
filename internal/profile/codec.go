package profile

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DocumentVersion is the profile file format written by EncodeDocument.
const DocumentVersion = 1

// document is the on-disk YAML envelope around a profile. Profile is typed
// loosely so decode can route the raw mapping through mapstructure, which
// reads kind-discriminated node maps better than direct struct unmarshal.
type document struct {
	Version int `yaml:"version"`
	Profile any `yaml:"profile"`
}

// DecodeDocument parses a YAML profile document. Unknown keys are rejected
// so typos in hand-written files fail loudly instead of silently curing with
// default values. The decoded profile is not validated here.
func DecodeDocument(data []byte) (*Profile, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse profile document: %w", err)
	}
	if doc.Version > DocumentVersion {
		return nil, fmt.Errorf("profile document version %d not supported (max %d)", doc.Version, DocumentVersion)
	}
	if doc.Profile == nil {
		return nil, fmt.Errorf("profile document has no profile section")
	}

	var p Profile
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &p,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build profile decoder: %w", err)
	}
	if err := dec.Decode(doc.Profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile document: %w", err)
	}
	return &p, nil
}

// EncodeDocument marshals a profile into the YAML document form accepted by
// DecodeDocument.
func EncodeDocument(p *Profile) ([]byte, error) {
	data, err := yaml.Marshal(document{Version: DocumentVersion, Profile: p})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile document: %w", err)
	}
	return data, nil
}

// LoadFile reads and decodes a YAML profile document from disk.
func LoadFile(filename string) (*Profile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}
	return DecodeDocument(data)
}

// SaveFile writes the profile to disk in the YAML document form.
func SaveFile(p *Profile, filename string) error {
	data, err := EncodeDocument(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}
	return nil
}
