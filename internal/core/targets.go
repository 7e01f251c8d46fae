package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// targetDocument is the top level of a targets YAML file:
//
//	targets:
//	  - key: customers
//	    label: Customers
//	    fields:
//	      - name: email
//	        label: Email Address
//	        required: true
type targetDocument struct {
	Targets []Target `yaml:"targets"`
}

// ParseTargets decodes and validates a targets YAML document.
// Unknown keys are rejected so typos in field attributes surface early.
func ParseTargets(data []byte) ([]Target, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc targetDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse targets: %w", err)
	}

	seen := make(map[string]bool, len(doc.Targets))
	for _, t := range doc.Targets {
		if err := ValidateTarget(t); err != nil {
			return nil, err
		}
		if seen[t.Key] {
			return nil, ValidationError{Target: t.Key, Message: "defined more than once"}
		}
		seen[t.Key] = true
	}
	return doc.Targets, nil
}

// RegisterTargets parses data and registers every target in it.
// Panics on duplicates, like Register; intended for built-in definitions.
func RegisterTargets(data []byte) {
	targets, err := ParseTargets(data)
	if err != nil {
		panic(err.Error())
	}
	for _, t := range targets {
		Register(t)
	}
}

// LoadTargetsFile reads a targets YAML file and adds its targets to the
// registry, replacing built-in targets with the same key.
// Returns the number of targets loaded.
func LoadTargetsFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read targets file: %w", err)
	}

	targets, err := ParseTargets(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	for _, t := range targets {
		if err := Replace(t); err != nil {
			return 0, err
		}
	}
	return len(targets), nil
}
