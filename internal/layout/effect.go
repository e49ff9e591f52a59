package layout

import (
	"fmt"
	"math"

	"github.com/linuxmatters/greetgif/internal/config"
	"github.com/linuxmatters/greetgif/internal/errdefs"
)

// EffectKind is the closed set of animation effects a template may use.
type EffectKind int

const (
	EffectFadeIn EffectKind = iota + 1
	EffectFadeInUp
	EffectScale
	EffectRotate
	EffectGlow
	EffectTypewriter
)

var effectNames = map[EffectKind]string{
	EffectFadeIn:     "fadeIn",
	EffectFadeInUp:   "fadeInUp",
	EffectScale:      "scale",
	EffectRotate:     "rotate",
	EffectGlow:       "glow",
	EffectTypewriter: "typewriter",
}

func (k EffectKind) String() string {
	if name, ok := effectNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EffectKind(%d)", int(k))
}

// MarshalText writes the template file name of the effect.
func (k EffectKind) MarshalText() ([]byte, error) {
	name, ok := effectNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown effect kind %d", int(k))
	}
	return []byte(name), nil
}

// UnmarshalText accepts the template file names; anything else fails.
func (k *EffectKind) UnmarshalText(b []byte) error {
	for kind, name := range effectNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown effect %q", string(b))
}

// Effect is one timed animation. Only the parameters of its Kind are read.
type Effect struct {
	Kind     EffectKind `yaml:"type" json:"type"`
	Delay    int        `yaml:"delay,omitempty" json:"delay,omitempty"`       // ms
	Duration int        `yaml:"duration,omitempty" json:"duration,omitempty"` // ms, 0 switches instantly

	From     float64 `yaml:"from,omitempty" json:"from,omitempty"`         // scale
	To       float64 `yaml:"to,omitempty" json:"to,omitempty"`             // scale
	Angle    float64 `yaml:"angle,omitempty" json:"angle,omitempty"`       // rotate, degrees
	Color    string  `yaml:"color,omitempty" json:"color,omitempty"`       // glow
	Distance float64 `yaml:"distance,omitempty" json:"distance,omitempty"` // fadeInUp, pixels
}

func (e Effect) validate() error {
	if _, ok := effectNames[e.Kind]; !ok {
		return errdefs.Configf("unknown effect kind %d", int(e.Kind))
	}
	if e.Delay < 0 || e.Duration < 0 {
		return errdefs.Configf("%s: delay and duration must not be negative", e.Kind)
	}
	switch e.Kind {
	case EffectScale:
		if e.From < 0 || e.To < 0 || (e.From == 0 && e.To == 0) {
			return errdefs.Configf("scale: invalid range %g..%g", e.From, e.To)
		}
	case EffectGlow:
		if e.Color != "" {
			if _, err := config.ParseColor(e.Color); err != nil {
				return errdefs.Config(err, "glow colour")
			}
		}
	case EffectFadeInUp:
		if e.Distance < 0 {
			return errdefs.Configf("fadeInUp: distance must not be negative, got %g", e.Distance)
		}
	}
	return nil
}

// progress maps frame time t to 0..1 over the effect window.
func (e Effect) progress(t float64) float64 {
	local := t - float64(e.Delay)
	if e.Duration <= 0 {
		if local >= 0 {
			return 1
		}
		return 0
	}
	return clamp(local/float64(e.Duration), 0, 1)
}

// State is the visual modification of an area at a point in time.
type State struct {
	Opacity   float64 // 0..1
	Scale     float64 // 1 is natural size
	Rotation  float64 // degrees, clockwise
	OffsetY   float64 // pixels, positive moves down
	Glow      float64 // 0..1 strength
	GlowColor string
	Reveal    float64 // fraction of text runes shown
}

// Identity is the static state: nothing is animated.
func Identity() State {
	return State{Opacity: 1, Scale: 1, Reveal: 1}
}

func (s State) IsIdentity() bool {
	return s.Opacity == 1 && s.Scale == 1 && s.Rotation == 0 && s.OffsetY == 0 && s.Glow == 0 && s.Reveal == 1
}

// Evaluate combines effects at time t (ms since the first frame).
func Evaluate(effects []Effect, t float64) State {
	s := Identity()
	for _, e := range effects {
		p := e.progress(t)
		switch e.Kind {
		case EffectFadeIn:
			s.Opacity *= p
		case EffectFadeInUp:
			dist := e.Distance
			if dist == 0 {
				dist = config.FadeUpShift
			}
			s.Opacity *= p
			s.OffsetY += (1 - p) * dist
		case EffectScale:
			s.Scale *= e.From + (e.To-e.From)*p
		case EffectRotate:
			s.Rotation += e.Angle * p
		case EffectGlow:
			if g := math.Sin(math.Pi * p); g > s.Glow {
				s.Glow = g
				s.GlowColor = e.Color
			}
		case EffectTypewriter:
			s.Reveal = math.Min(s.Reveal, p)
		}
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
