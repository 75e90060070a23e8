// Package graphdoc loads decision-graph documents: a YAML or JSON file that
// lists artifacts per kind. Loading is the ingestion boundary, so enum
// strings are parsed and every artifact is validated before it can reach a
// Store.
package graphdoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"constitution/internal/artifact"
	"constitution/internal/store"
)

// Document is the on-disk shape of a decision graph.
type Document struct {
	RawInputs       []artifact.RawInput        `json:"raw_inputs,omitempty" yaml:"raw_inputs,omitempty"`
	Evidence        []artifact.Evidence        `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Observations    []artifact.Observation     `json:"observations,omitempty" yaml:"observations,omitempty"`
	Interpretations []artifact.Interpretation  `json:"interpretations,omitempty" yaml:"interpretations,omitempty"`
	Orientations    []artifact.Orientation     `json:"orientations,omitempty" yaml:"orientations,omitempty"`
	Options         []artifact.Option          `json:"options,omitempty" yaml:"options,omitempty"`
	Recommendations []artifact.Recommendation  `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	Choices         []artifact.Choice          `json:"choices,omitempty" yaml:"choices,omitempty"`
	Outcomes        []artifact.Outcome         `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
	Reviews         []artifact.Review          `json:"reviews,omitempty" yaml:"reviews,omitempty"`
	Calibrations    []artifact.CalibrationNote `json:"calibrations,omitempty" yaml:"calibrations,omitempty"`
	Episodes        []artifact.Episode         `json:"episodes,omitempty" yaml:"episodes,omitempty"`
}

// LoadFromPath reads a graph document (YAML or JSON) and validates it.
// Format is detected by extension (.yaml/.yml or .json) or by content.
func LoadFromPath(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses a graph document from bytes. ext is a format hint; empty means
// detect from content (a leading "{" is JSON, anything else YAML).
func Load(data []byte, ext string) (*Document, error) {
	var d Document
	switch format(data, ext) {
	case "json":
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parse graph json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parse graph yaml: %w", err)
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func format(data []byte, ext string) string {
	switch strings.ToLower(ext) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		return "json"
	}
	return "yaml"
}

// Artifacts returns every artifact in graph order: upstream kinds first,
// episodes last.
func (d *Document) Artifacts() []artifact.Artifact {
	var out []artifact.Artifact
	out = appendAll(out, d.RawInputs)
	out = appendAll(out, d.Evidence)
	out = appendAll(out, d.Observations)
	out = appendAll(out, d.Interpretations)
	out = appendAll(out, d.Orientations)
	out = appendAll(out, d.Options)
	out = appendAll(out, d.Recommendations)
	out = appendAll(out, d.Choices)
	out = appendAll(out, d.Outcomes)
	out = appendAll(out, d.Reviews)
	out = appendAll(out, d.Calibrations)
	return appendAll(out, d.Episodes)
}

func appendAll[T artifact.Artifact](out []artifact.Artifact, in []T) []artifact.Artifact {
	for _, a := range in {
		out = append(out, a)
	}
	return out
}

// Validate runs local validation on every artifact and rejects ids that
// repeat within a kind. All problems are reported together.
func (d *Document) Validate() error {
	var errs []error
	seen := map[artifact.Kind]map[string]bool{}
	for _, a := range d.Artifacts() {
		kind, id := a.ArtifactKind(), a.ArtifactID()
		if seen[kind] == nil {
			seen[kind] = map[string]bool{}
		}
		if seen[kind][id] {
			errs = append(errs, fmt.Errorf("%w: duplicate %s id %q", artifact.ErrInvalid, kind, id))
			continue
		}
		seen[kind][id] = true
		if v, ok := a.(artifact.Validator); ok {
			if err := v.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s %q: %w", kind, id, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Apply writes every artifact into s in graph order and returns how many
// were stored.
func (d *Document) Apply(s store.Store) (int, error) {
	as := d.Artifacts()
	if err := store.PutAll(s, as...); err != nil {
		return 0, err
	}
	return len(as), nil
}

// LoadInto loads the document at path and applies it to s.
func LoadInto(s store.Store, path string) (*Document, error) {
	d, err := LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Apply(s); err != nil {
		return nil, fmt.Errorf("apply graph %s: %w", path, err)
	}
	return d, nil
}
