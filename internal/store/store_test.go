package store

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"constitution/internal/artifact"
	"constitution/internal/gate"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := Open(filepath.Join(t.TempDir(), "nested", "kernel.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"mem": NewMemStore(), "sqlite": sq}
}

func mustOption(t *testing.T, title string) artifact.Option {
	t.Helper()
	o, err := artifact.NewOption(artifact.OptionExecute, title, 0.3, 0.7)
	if err != nil {
		t.Fatalf("NewOption: %v", err)
	}
	return o.WithActionClass(gate.Probe).AddObservations("obs_1")
}

func TestStore_PutGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			opt := mustOption(t, "restart canary")
			id, err := s.Put(opt)
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if id != opt.ID {
				t.Errorf("Put id = %q, want %q", id, opt.ID)
			}

			got, ok, err := GetAs[artifact.Option](s, opt.ID)
			if err != nil || !ok {
				t.Fatalf("GetAs: ok=%v err=%v", ok, err)
			}
			if diff := cmp.Diff(opt, got); diff != "" {
				t.Errorf("option mismatch (-want +got):\n%s", diff)
			}

			has, err := s.Has(artifact.KindOption, opt.ID)
			if err != nil || !has {
				t.Errorf("Has = %v, %v", has, err)
			}
			has, _ = s.Has(artifact.KindRecommendation, opt.ID)
			if has {
				t.Error("Has found option id under Recommendation partition")
			}
		})
	}
}

func TestStore_MustGetNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a, err := s.Get(artifact.KindOption, "opt_missing")
			if err != nil || a != nil {
				t.Fatalf("Get missing = %v, %v", a, err)
			}
			if _, err := MustGet(s, artifact.KindOption, "opt_missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("MustGet err = %v, want ErrNotFound", err)
			}
			if _, err := MustGetAs[artifact.Episode](s, "ep_missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("MustGetAs err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_ResolveManyPartialFailure(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			opt := mustOption(t, "scale out")
			if _, err := s.Put(opt); err != nil {
				t.Fatalf("Put: %v", err)
			}
			found, missing, err := Resolve[artifact.Option](s, []string{opt.ID, "opt_missing"})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if len(found) != 1 || found[0].ID != opt.ID {
				t.Errorf("found = %+v", found)
			}
			want := []ResolveError{{ArtifactType: artifact.KindOption, ArtifactID: "opt_missing"}}
			if diff := cmp.Diff(want, missing); diff != "" {
				t.Errorf("resolve errors (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_OverwriteKeepsListOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := artifact.NewEpisode("first")
			b := artifact.NewEpisode("second")
			if err := PutAll(s, a, b); err != nil {
				t.Fatalf("PutAll: %v", err)
			}
			if _, err := s.Put(a.AddObservations("obs_9")); err != nil {
				t.Fatalf("re-put: %v", err)
			}
			ids, err := s.ListIDs(artifact.KindEpisode)
			if err != nil {
				t.Fatalf("ListIDs: %v", err)
			}
			if diff := cmp.Diff([]string{a.ID, b.ID}, ids); diff != "" {
				t.Errorf("ListIDs (-want +got):\n%s", diff)
			}
			got, err := MustGetAs[artifact.Episode](s, a.ID)
			if err != nil {
				t.Fatalf("MustGetAs: %v", err)
			}
			if diff := cmp.Diff([]string{"obs_9"}, got.ObservationIDs); diff != "" {
				t.Errorf("last write did not win (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_RejectsEmptyID(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Put(artifact.Episode{}); err == nil {
				t.Error("Put with empty id succeeded")
			}
		})
	}
}

func TestMemStore_ConcurrentPut(t *testing.T) {
	s := NewMemStore()
	ep := artifact.NewEpisode("race")
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Put(ep)
			_, _, _ = s.ResolveMany(artifact.KindEpisode, []string{ep.ID})
		}()
	}
	wg.Wait()
	ids, _ := s.ListIDs(artifact.KindEpisode)
	if len(ids) != 1 {
		t.Errorf("ListIDs = %v, want one id", ids)
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ep := artifact.NewEpisode("persist")
	if _, err := s.Put(ep); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := MustGetAs[artifact.Episode](s2, ep.ID)
	if err != nil {
		t.Fatalf("MustGetAs: %v", err)
	}
	if got.Title != "persist" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			opt := mustOption(t, "drain node")
			if _, err := s.Put(opt); err != nil {
				t.Fatalf("Put: %v", err)
			}
			want := artifact.Clone(opt).(artifact.Option)
			opt.ObservationIDs[0] = "obs_put_alias"

			got, err := MustGetAs[artifact.Option](s, opt.ID)
			if err != nil {
				t.Fatalf("MustGetAs: %v", err)
			}
			got.ObservationIDs[0] = "obs_get_alias"

			found, _, err := s.ResolveMany(artifact.KindOption, []string{opt.ID})
			if err != nil || len(found) != 1 {
				t.Fatalf("ResolveMany: %v, %v", found, err)
			}
			found[0].(artifact.Option).ObservationIDs[0] = "obs_resolve_alias"

			again, err := MustGetAs[artifact.Option](s, opt.ID)
			if err != nil {
				t.Fatalf("MustGetAs: %v", err)
			}
			if diff := cmp.Diff(want, again); diff != "" {
				t.Errorf("stored option changed through a caller's copy (-want +got):\n%s", diff)
			}
		})
	}
}
