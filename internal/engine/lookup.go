package engine

import (
	"constitution/internal/artifact"
	"constitution/internal/store"
)

// lookup answers the existence questions the lifecycle rules ask about
// artifacts an episode does not list directly, such as the recommendation a
// choice cites. Absent ids are simply missing from the returned maps.
type lookup struct {
	s    store.Store
	recs map[string]artifact.Recommendation
}

func newLookup(s store.Store, known []artifact.Recommendation) *lookup {
	recs := make(map[string]artifact.Recommendation, len(known))
	for _, r := range known {
		recs[r.ID] = r
	}
	return &lookup{s: s, recs: recs}
}

func (l *lookup) recommendations(ids []string) (map[string]artifact.Recommendation, error) {
	out := make(map[string]artifact.Recommendation, len(ids))
	for _, id := range ids {
		if r, ok := l.recs[id]; ok {
			out[id] = r
			continue
		}
		r, ok, err := store.GetAs[artifact.Recommendation](l.s, id)
		if err != nil {
			return nil, err
		}
		if ok {
			l.recs[id] = r
			out[id] = r
		}
	}
	return out, nil
}

func (l *lookup) exists(kind artifact.Kind, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		ok, err := l.s.Has(kind, id)
		if err != nil {
			return nil, err
		}
		out[id] = ok
	}
	return out, nil
}
