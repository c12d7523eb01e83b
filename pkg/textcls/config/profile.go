package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
)

// Profile holds per-verb option defaults read from a YAML file:
//
//	stages:
//	  extract-file:
//	    input_file: corpus.zip
//	    compress: true
//	  split:
//	    ratio: 80
//
// Each verb section is decoded strictly into that verb's options struct, so
// unknown keys and mistyped values are errors rather than silently ignored.
type Profile struct {
	Path   string
	stages map[string]yaml.Node
}

// LoadProfile reads a profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseProfile(path, data)
}

// ParseProfile parses profile YAML; path is only used in messages.
func ParseProfile(path string, data []byte) (*Profile, error) {
	var doc struct {
		Stages map[string]yaml.Node `yaml:"stages"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: profile %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	return &Profile{Path: path, stages: doc.Stages}, nil
}

// Has reports whether the profile has a section for verb.
func (p *Profile) Has(verb string) bool {
	if p == nil {
		return false
	}
	_, ok := p.stages[verb]
	return ok
}

// Decode applies the section for verb onto into. Fields absent from the
// section keep their current values. A missing section is not an error.
func (p *Profile) Decode(verb string, into any) error {
	if p == nil {
		return nil
	}
	node, ok := p.stages[verb]
	if !ok {
		return nil
	}
	// yaml.Node.Decode cannot reject unknown fields, so re-encode the
	// section and decode it strictly.
	raw, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("%w: profile %s: stage %s: %v", internalerr.ErrInvalidConfig, p.Path, verb, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: profile %s: stage %s: %v", internalerr.ErrInvalidConfig, p.Path, verb, err)
	}
	return nil
}
