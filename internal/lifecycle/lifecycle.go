package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"constitution/internal/artifact"
	"constitution/internal/engine"
	"constitution/internal/logging"
	"constitution/internal/store"
)

var (
	// ErrOptionNotInEpisode is returned when a choice names an option the
	// episode does not list.
	ErrOptionNotInEpisode = errors.New("lifecycle: option not listed on episode")
	// ErrNoRecommendation is returned when a choice cannot be tied to any
	// recommendation.
	ErrNoRecommendation = errors.New("lifecycle: episode has no recommendation")
)

// Transition is the result of one lifecycle step.
type Transition struct {
	EpisodeID  string        `json:"episode_id"`
	ArtifactID string        `json:"artifact_id,omitempty"`
	Stage      Stage         `json:"stage"`
	Report     engine.Report `json:"report"`
}

// ChooseRequest selects an option. RecommendationID defaults to the
// episode's latest recommendation and ChosenBy to human.
type ChooseRequest struct {
	OptionID         string
	RecommendationID string
	ChosenBy         artifact.ChoiceBy
	Rationale        string
	UsedOverride     bool
}

// Lifecycle appends to episodes held in a Store. Episode updates are
// read-modify-write, so one Lifecycle serializes them.
type Lifecycle struct {
	store  store.Store
	engine *engine.Engine
	log    *slog.Logger
	mu     sync.Mutex
}

// New returns a Lifecycle over s.
func New(s store.Store) *Lifecycle {
	return &Lifecycle{store: s, engine: engine.New(s), log: logging.New("lifecycle")}
}

// Choose records a choice of req.OptionID and marks the episode acted.
// The returned report will carry INV-OUT-001 until an outcome is logged.
func (l *Lifecycle) Choose(episodeID string, req ChooseRequest) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ep, err := store.MustGetAs[artifact.Episode](l.store, episodeID)
	if err != nil {
		return Transition{}, err
	}
	if _, err := store.MustGet(l.store, artifact.KindOption, req.OptionID); err != nil {
		return Transition{}, err
	}
	if !ep.HasOption(req.OptionID) {
		return Transition{}, fmt.Errorf("%w: %s not on episode %s", ErrOptionNotInEpisode, req.OptionID, ep.ID)
	}
	recID := req.RecommendationID
	if recID == "" {
		recID = ep.LatestRecommendationID()
	}
	if recID == "" {
		return Transition{}, fmt.Errorf("%w: %s", ErrNoRecommendation, ep.ID)
	}

	ch, err := artifact.NewChoice(ep.ID, recID, req.OptionID)
	if err != nil {
		return Transition{}, err
	}
	if req.ChosenBy != "" {
		ch = ch.WithChosenBy(req.ChosenBy)
	}
	if req.UsedOverride {
		ch = ch.WithOverride(req.Rationale)
	} else if req.Rationale != "" {
		ch = ch.WithRationale(req.Rationale)
	}

	if ep, err = ep.LogChoice(ch.ID); err != nil {
		return Transition{}, err
	}
	if ep, err = ep.MarkActed(req.OptionID, time.Time{}); err != nil {
		return Transition{}, err
	}
	if err := store.PutAll(l.store, ch, ep); err != nil {
		return Transition{}, err
	}
	return l.transition(ep, ch.ID, "choice recorded", slog.String("option_id", req.OptionID))
}

// MarkActed marks the episode acted on optionID without recording a choice.
// A second, different option is refused with artifact.ErrChosenOptionConflict.
func (l *Lifecycle) MarkActed(episodeID, optionID string) (Transition, error) {
	return l.update(episodeID, "", "episode acted", func(ep artifact.Episode) (artifact.Episode, error) {
		return ep.MarkActed(optionID, time.Time{})
	})
}

// LogOutcome stores o and appends it to the episode.
func (l *Lifecycle) LogOutcome(episodeID string, o artifact.Outcome) (Transition, error) {
	return l.append(episodeID, o, "outcome logged", artifact.Episode.LogOutcome)
}

// LogReview stores r and appends it to the episode.
func (l *Lifecycle) LogReview(episodeID string, r artifact.Review) (Transition, error) {
	if r.EpisodeID == "" {
		r.EpisodeID = episodeID
	}
	return l.append(episodeID, r, "review logged", artifact.Episode.LogReview)
}

// LogCalibration stores c and appends it to the episode.
func (l *Lifecycle) LogCalibration(episodeID string, c artifact.CalibrationNote) (Transition, error) {
	return l.append(episodeID, c, "calibration logged", artifact.Episode.LogCalibration)
}

type validatingArtifact interface {
	artifact.Artifact
	artifact.Validator
}

func (l *Lifecycle) append(episodeID string, a validatingArtifact, msg string, log func(artifact.Episode, string) (artifact.Episode, error)) (Transition, error) {
	if err := a.Validate(); err != nil {
		return Transition{}, err
	}
	return l.update(episodeID, a.ArtifactID(), msg, func(ep artifact.Episode) (artifact.Episode, error) {
		if _, err := l.store.Put(a); err != nil {
			return artifact.Episode{}, err
		}
		return log(ep, a.ArtifactID())
	})
}

func (l *Lifecycle) update(episodeID, artifactID, msg string, fn func(artifact.Episode) (artifact.Episode, error)) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ep, err := store.MustGetAs[artifact.Episode](l.store, episodeID)
	if err != nil {
		return Transition{}, err
	}
	if ep, err = fn(ep); err != nil {
		return Transition{}, err
	}
	if _, err := l.store.Put(ep); err != nil {
		return Transition{}, err
	}
	return l.transition(ep, artifactID, msg)
}

func (l *Lifecycle) transition(ep artifact.Episode, artifactID, msg string, attrs ...any) (Transition, error) {
	rep, err := l.engine.ValidateEpisode(ep.ID)
	if err != nil {
		return Transition{}, err
	}
	t := Transition{EpisodeID: ep.ID, ArtifactID: artifactID, Stage: StageOf(ep), Report: rep}
	attrs = append(attrs,
		slog.String("episode_id", ep.ID),
		slog.String("stage", t.Stage.String()),
		slog.Int("violations", len(rep.Violations)))
	if rep.OK() {
		l.log.Info(msg, attrs...)
	} else {
		l.log.Warn(msg, attrs...)
	}
	return t, nil
}
