// Package sound maps notification categories to sound profiles and
// plays them subject to the persisted enable/volume settings.
package sound

import (
	"io"
	"os"

	"github.com/edusuite/edusync/internal/logger"
	"github.com/edusuite/edusync/internal/model"
	"github.com/edusuite/edusync/internal/prefs"
)

// Player is the audio subsystem. Overlapping calls may overlap audibly;
// no debouncing is applied.
type Player interface {
	Play(profile string, volume float64)
}

// BellPlayer is the default Player: it rings the terminal bell. Volume
// is ignored because the terminal offers no control over it.
type BellPlayer struct {
	W io.Writer
}

// Play writes the bell character.
func (p BellPlayer) Play(string, float64) {
	w := p.W
	if w == nil {
		w = os.Stdout
	}
	w.Write([]byte("\a"))
}

// Controller selects a sound profile for a notification and plays it
// unless sound is disabled globally or for the category.
type Controller struct {
	prefs  *prefs.Store
	player Player
	log    *logger.Logger
}

// New creates a sound controller. A nil player falls back to the
// terminal bell.
func New(p *prefs.Store, player Player, log *logger.Logger) *Controller {
	if player == nil {
		player = BellPlayer{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{prefs: p, player: player, log: log}
}

// ProfileFor maps a notification category and severity to a sound
// profile name. Pure: the same inputs always yield the same profile.
func ProfileFor(category model.Category, severity model.Severity) string {
	if severity == model.SeverityError {
		return "alarm"
	}
	switch category {
	case model.CategoryMessage:
		return "chime"
	case model.CategoryAlert:
		return "alert"
	case model.CategorySystem:
		return "pop"
	default:
		return "default"
	}
}

// Play plays the profile for the given category and severity. It is a
// no-op when sound is disabled globally or for the category. Preference
// read failures are logged and treated as disabled.
func (c *Controller) Play(category model.Category, severity model.Severity) {
	if category == "" {
		category = model.CategoryOther
	}

	enabled, err := c.prefs.SoundEnabled()
	if err != nil {
		c.log.Warnw("reading sound flag failed", "error", err)
		return
	}
	if !enabled {
		return
	}

	profile, err := c.prefs.SoundProfile(category)
	if err != nil {
		c.log.Warnw("reading sound profile failed",
			"category", category, "error", err)
		return
	}
	if !profile.Enabled {
		return
	}

	c.player.Play(ProfileFor(category, severity), profile.Volume)
}
