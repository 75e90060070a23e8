package artifact

import "time"

// Observation is a reality-anchored claim.
type Observation struct {
	ID            string        `json:"observation_id" yaml:"observation_id"`
	CreatedAt     time.Time     `json:"created_at" yaml:"created_at"`
	InfoType      InfoType      `json:"info_type" yaml:"info_type"`
	Statement     string        `json:"statement" yaml:"statement"`
	Confidence    float64       `json:"confidence" yaml:"confidence"`
	Uncertainties []Uncertainty `json:"uncertainties,omitempty" yaml:"uncertainties,omitempty"`
	EvidenceIDs   []string      `json:"evidence_ids,omitempty" yaml:"evidence_ids,omitempty"`
	RawInputIDs   []string      `json:"raw_input_ids,omitempty" yaml:"raw_input_ids,omitempty"`
	Tags          []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
}

func (o Observation) ArtifactID() string { return o.ID }
func (Observation) ArtifactKind() Kind   { return KindObservation }

// NewObservation requires an observational info type.
func NewObservation(t InfoType, statement string, confidence float64) (Observation, error) {
	o := Observation{
		ID:         NewID(prefixObservation),
		CreatedAt:  now(),
		InfoType:   t,
		Statement:  statement,
		Confidence: confidence,
	}
	if err := o.Validate(); err != nil {
		return Observation{}, err
	}
	return o, nil
}

func (o Observation) Validate() error {
	if o.ID == "" {
		return invalidf("observation id is empty")
	}
	if !o.InfoType.Observational() {
		return invalidf("observation %s has non-observational info type %q", o.ID, o.InfoType)
	}
	if err := checkUnit("observation confidence", o.Confidence); err != nil {
		return err
	}
	return validateUncertainties("observation "+o.ID, o.Uncertainties)
}

// HasProvenance reports whether the observation cites evidence or raw input.
func (o Observation) HasProvenance() bool { return len(o.EvidenceIDs) > 0 || len(o.RawInputIDs) > 0 }

func (o Observation) clone() Observation {
	o.Uncertainties = cloneUncertainties(o.Uncertainties)
	o.EvidenceIDs = cloneStrings(o.EvidenceIDs)
	o.RawInputIDs = cloneStrings(o.RawInputIDs)
	o.Tags = cloneStrings(o.Tags)
	return o
}

func (o Observation) AddEvidence(ids ...string) Observation {
	o = o.clone()
	o.EvidenceIDs = appendUnique(o.EvidenceIDs, ids...)
	return o
}

func (o Observation) AddRawInputs(ids ...string) Observation {
	o = o.clone()
	o.RawInputIDs = appendUnique(o.RawInputIDs, ids...)
	return o
}

func (o Observation) AddUncertainties(us ...Uncertainty) Observation {
	o = o.clone()
	o.Uncertainties = append(o.Uncertainties, us...)
	return o
}

func (o Observation) AddTags(tags ...string) Observation {
	o = o.clone()
	o.Tags = appendUnique(o.Tags, tags...)
	return o
}

// Interpretation is a hypothesis or explanation built on observations.
type Interpretation struct {
	ID             string        `json:"interpretation_id" yaml:"interpretation_id"`
	CreatedAt      time.Time     `json:"created_at" yaml:"created_at"`
	InfoType       InfoType      `json:"info_type" yaml:"info_type"`
	Title          string        `json:"title" yaml:"title"`
	Narrative      string        `json:"narrative,omitempty" yaml:"narrative,omitempty"`
	Confidence     float64       `json:"confidence" yaml:"confidence"`
	Uncertainties  []Uncertainty `json:"uncertainties,omitempty" yaml:"uncertainties,omitempty"`
	ObservationIDs []string      `json:"observation_ids,omitempty" yaml:"observation_ids,omitempty"`
	EvidenceIDs    []string      `json:"evidence_ids,omitempty" yaml:"evidence_ids,omitempty"`
}

func (i Interpretation) ArtifactID() string { return i.ID }
func (Interpretation) ArtifactKind() Kind   { return KindInterpretation }

// NewInterpretation requires an interpretive info type.
func NewInterpretation(t InfoType, title, narrative string, confidence float64) (Interpretation, error) {
	in := Interpretation{
		ID:         NewID(prefixInterpretation),
		CreatedAt:  now(),
		InfoType:   t,
		Title:      title,
		Narrative:  narrative,
		Confidence: confidence,
	}
	if err := in.Validate(); err != nil {
		return Interpretation{}, err
	}
	return in, nil
}

func (i Interpretation) Validate() error {
	if i.ID == "" {
		return invalidf("interpretation id is empty")
	}
	if !i.InfoType.Interpretive() {
		return invalidf("interpretation %s has non-interpretive info type %q", i.ID, i.InfoType)
	}
	if err := checkUnit("interpretation confidence", i.Confidence); err != nil {
		return err
	}
	return validateUncertainties("interpretation "+i.ID, i.Uncertainties)
}

func (i Interpretation) clone() Interpretation {
	i.Uncertainties = cloneUncertainties(i.Uncertainties)
	i.ObservationIDs = cloneStrings(i.ObservationIDs)
	i.EvidenceIDs = cloneStrings(i.EvidenceIDs)
	return i
}

func (i Interpretation) AddObservations(ids ...string) Interpretation {
	i = i.clone()
	i.ObservationIDs = appendUnique(i.ObservationIDs, ids...)
	return i
}

func (i Interpretation) AddEvidence(ids ...string) Interpretation {
	i = i.clone()
	i.EvidenceIDs = appendUnique(i.EvidenceIDs, ids...)
	return i
}

func (i Interpretation) AddUncertainties(us ...Uncertainty) Interpretation {
	i = i.clone()
	i.Uncertainties = append(i.Uncertainties, us...)
	return i
}
