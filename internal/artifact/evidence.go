package artifact

import (
	"maps"
	"strings"
	"time"
)

// RawInput is free text or a payload exactly as it entered the system.
type RawInput struct {
	ID        string            `json:"raw_input_id" yaml:"raw_input_id"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	Source    string            `json:"source,omitempty" yaml:"source,omitempty"`
	Payload   string            `json:"payload" yaml:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	ParentID  string            `json:"parent_raw_input_id,omitempty" yaml:"parent_raw_input_id,omitempty"`
}

func (r RawInput) ArtifactID() string { return r.ID }
func (RawInput) ArtifactKind() Kind   { return KindRawInput }

func (r RawInput) clone() RawInput {
	r.Metadata = maps.Clone(r.Metadata)
	return r
}

// NewRawInput captures a payload from source.
func NewRawInput(source, payload string) RawInput {
	return RawInput{ID: NewID(prefixRawInput), CreatedAt: now(), Source: source, Payload: payload}
}

// SourceRef locates where evidence came from.
type SourceRef struct {
	URI         string     `json:"uri" yaml:"uri"`
	Title       string     `json:"title,omitempty" yaml:"title,omitempty"`
	Author      string     `json:"author,omitempty" yaml:"author,omitempty"`
	RetrievedAt *time.Time `json:"retrieved_at,omitempty" yaml:"retrieved_at,omitempty"`
}

// SpanRef narrows a source to a region. All fields are optional.
type SpanRef struct {
	Start       *int   `json:"start,omitempty" yaml:"start,omitempty"`
	End         *int   `json:"end,omitempty" yaml:"end,omitempty"`
	Page        *int   `json:"page,omitempty" yaml:"page,omitempty"`
	TimestampMS *int64 `json:"timestamp_ms,omitempty" yaml:"timestamp_ms,omitempty"`
}

func (s SpanRef) validate() error {
	if s.Start != nil && s.End != nil && *s.Start > *s.End {
		return invalidf("span start %d after end %d", *s.Start, *s.End)
	}
	return nil
}

// Evidence anchors claims to their sources.
type Evidence struct {
	ID        string      `json:"evidence_id" yaml:"evidence_id"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
	Sources   []SourceRef `json:"sources" yaml:"sources"`
	Spans     []SpanRef   `json:"spans,omitempty" yaml:"spans,omitempty"`
	Summary   string      `json:"summary,omitempty" yaml:"summary,omitempty"`
	Integrity float64     `json:"integrity" yaml:"integrity"`
	RawInputs []string    `json:"raw_input_ids,omitempty" yaml:"raw_input_ids,omitempty"`
}

func (e Evidence) ArtifactID() string { return e.ID }
func (Evidence) ArtifactKind() Kind   { return KindEvidence }

// NewEvidence builds evidence from at least one located source.
func NewEvidence(integrity float64, sources ...SourceRef) (Evidence, error) {
	e := Evidence{
		ID:        NewID(prefixEvidence),
		CreatedAt: now(),
		Sources:   append([]SourceRef(nil), sources...),
		Integrity: integrity,
	}
	if err := e.Validate(); err != nil {
		return Evidence{}, err
	}
	return e, nil
}

// Validate checks local well-formedness.
func (e Evidence) Validate() error {
	if e.ID == "" {
		return invalidf("evidence id is empty")
	}
	if len(e.Sources) == 0 {
		return invalidf("evidence %s has no sources", e.ID)
	}
	for i, s := range e.Sources {
		if strings.TrimSpace(s.URI) == "" {
			return invalidf("evidence %s source[%d] has an empty locator", e.ID, i)
		}
	}
	for _, sp := range e.Spans {
		if err := sp.validate(); err != nil {
			return err
		}
	}
	return checkUnit("evidence integrity", e.Integrity)
}

func (e Evidence) clone() Evidence {
	e.Sources = append([]SourceRef(nil), e.Sources...)
	e.Spans = append([]SpanRef(nil), e.Spans...)
	e.RawInputs = cloneStrings(e.RawInputs)
	return e
}

func (e Evidence) WithSummary(s string) Evidence {
	e = e.clone()
	e.Summary = s
	return e
}

func (e Evidence) AddSpans(spans ...SpanRef) Evidence {
	e = e.clone()
	e.Spans = append(e.Spans, spans...)
	return e
}

func (e Evidence) AddRawInputs(ids ...string) Evidence {
	e = e.clone()
	e.RawInputs = appendUnique(e.RawInputs, ids...)
	return e
}

// Uncertainty is an explicit unknown attached to a claim or option.
type Uncertainty struct {
	Description string          `json:"description" yaml:"description"`
	Level       float64         `json:"level" yaml:"level"`
	Kind        UncertaintyKind `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// NewUncertainty validates level; kind defaults to other.
func NewUncertainty(description string, level float64, kind UncertaintyKind) (Uncertainty, error) {
	if kind == "" {
		kind = UncertaintyOther
	}
	u := Uncertainty{Description: description, Level: level, Kind: kind}
	if err := u.Validate(); err != nil {
		return Uncertainty{}, err
	}
	return u, nil
}

func (u Uncertainty) Validate() error { return checkUnit("uncertainty level", u.Level) }

// maxLevel returns the highest uncertainty level, or false when there are none.
func maxLevel(us []Uncertainty) (float64, bool) {
	if len(us) == 0 {
		return 0, false
	}
	m := us[0].Level
	for _, u := range us[1:] {
		if u.Level > m {
			m = u.Level
		}
	}
	return m, true
}
