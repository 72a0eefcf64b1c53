package sound_test

import (
	"sync"
	"testing"

	"github.com/edusuite/edusync/internal/model"
	"github.com/edusuite/edusync/internal/prefs"
	"github.com/edusuite/edusync/internal/sound"
	"github.com/edusuite/edusync/tests/testutil"
)

type recordingPlayer struct {
	mu       sync.Mutex
	profiles []string
	volumes  []float64
}

func (p *recordingPlayer) Play(profile string, volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles = append(p.profiles, profile)
	p.volumes = append(p.volumes, volume)
}

func (p *recordingPlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.profiles)
}

func TestProfileMapping(t *testing.T) {
	cases := []struct {
		category model.Category
		severity model.Severity
		want     string
	}{
		{model.CategoryMessage, model.SeverityInfo, "chime"},
		{model.CategoryAlert, model.SeverityWarning, "alert"},
		{model.CategorySystem, "", "pop"},
		{model.CategoryOther, "", "default"},
		{model.CategoryMessage, model.SeverityError, "alarm"},
	}
	for _, tc := range cases {
		if got := sound.ProfileFor(tc.category, tc.severity); got != tc.want {
			t.Errorf("ProfileFor(%q, %q) = %q, want %q",
				tc.category, tc.severity, got, tc.want)
		}
	}
}

func TestPlayUsesConfiguredVolume(t *testing.T) {
	p := testutil.NewTestPrefs(t)
	player := &recordingPlayer{}
	c := sound.New(p, player, nil)

	if err := p.SetSoundProfile(model.CategoryMessage, prefs.SoundProfile{Enabled: true, Volume: 0.25}); err != nil {
		t.Fatalf("SetSoundProfile: %v", err)
	}

	c.Play(model.CategoryMessage, model.SeverityInfo)
	if player.count() != 1 {
		t.Fatalf("plays = %d, want 1", player.count())
	}
	if player.profiles[0] != "chime" || player.volumes[0] != 0.25 {
		t.Fatalf("played %q at %v", player.profiles[0], player.volumes[0])
	}
}

func TestPlayNoopWhenGloballyDisabled(t *testing.T) {
	p := testutil.NewTestPrefs(t)
	player := &recordingPlayer{}
	c := sound.New(p, player, nil)

	if err := p.SetSoundEnabled(false); err != nil {
		t.Fatalf("SetSoundEnabled: %v", err)
	}
	c.Play(model.CategoryMessage, model.SeverityInfo)
	if player.count() != 0 {
		t.Fatal("sound played while globally disabled")
	}
}

func TestPlayNoopWhenCategoryDisabled(t *testing.T) {
	p := testutil.NewTestPrefs(t)
	player := &recordingPlayer{}
	c := sound.New(p, player, nil)

	if err := p.SetSoundProfile(model.CategoryAlert, prefs.SoundProfile{Enabled: false, Volume: 0.5}); err != nil {
		t.Fatalf("SetSoundProfile: %v", err)
	}
	c.Play(model.CategoryAlert, model.SeverityWarning)
	if player.count() != 0 {
		t.Fatal("sound played for disabled category")
	}

	// Other categories still play.
	c.Play(model.CategoryMessage, model.SeverityInfo)
	if player.count() != 1 {
		t.Fatal("enabled category blocked")
	}
}

func TestEmptyCategoryFallsBackToOther(t *testing.T) {
	p := testutil.NewTestPrefs(t)
	player := &recordingPlayer{}
	c := sound.New(p, player, nil)

	c.Play("", "")
	if player.count() != 1 || player.profiles[0] != "default" {
		t.Fatalf("profiles = %v, want [default]", player.profiles)
	}
}
