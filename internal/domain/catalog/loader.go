package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the on-disk catalog shape.
type document struct {
	RegistrationFee *float64  `yaml:"registration_fee"`
	Sections        []Section `yaml:"sections"`
}

// Load decodes a YAML catalog. A missing registration_fee falls back to the default fee.
func Load(r io.Reader) (*Static, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("catalog has no sections")
	}

	fee := DefaultRegistrationFee
	if doc.RegistrationFee != nil {
		fee = *doc.RegistrationFee
	}
	return New(doc.Sections, fee)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Encode writes c as a YAML document that Load accepts.
func Encode(w io.Writer, c Catalog) error {
	fee := c.RegistrationFee()
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{RegistrationFee: &fee, Sections: c.Sections()}); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return enc.Close()
}

// FromPath returns the catalog at path, or the built-in catalog when path is empty.
func FromPath(path string) (*Static, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
