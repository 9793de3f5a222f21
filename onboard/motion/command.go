package motion

import (
	"fmt"
	"strconv"
	"strings"

	errs "github.com/CodedInternet/gorecoater/onboard/errors"
)

type Mode int

const (
	ModeUnknown Mode = iota
	ModeAbsolute
	ModeRelative
	ModeTurns
	ModeHoming
	ModeSpeed
)

var modeNames = map[Mode]string{
	ModeAbsolute: "absolute",
	ModeRelative: "relative",
	ModeTurns:    "turns",
	ModeHoming:   "homing",
	ModeSpeed:    "speed",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeUnknown, errs.ValidationError{Field: "mode"}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) (err error) {
	*m, err = ParseMode(string(text))
	return
}

// Command is one requested motion. Fields that do not apply to Mode stay zero valued.
type Command struct {
	Mode     Mode    `json:"mode" yaml:"mode"`
	Speed    float64 `json:"speed" yaml:"speed"`
	Distance float64 `json:"distance" yaml:"distance"`
	Turns    float64 `json:"turns" yaml:"turns"`
}

func Absolute(distance, speed float64) Command {
	return Command{Mode: ModeAbsolute, Distance: distance, Speed: speed}
}

func Relative(distance, speed float64) Command {
	return Command{Mode: ModeRelative, Distance: distance, Speed: speed}
}

func Homing(speed float64) Command {
	return Command{Mode: ModeHoming, Speed: speed}
}

func Speed(speed float64) Command {
	return Command{Mode: ModeSpeed, Speed: speed}
}

func (c Command) String() string {
	return fmt.Sprintf("%s(distance=%g speed=%g turns=%g)", c.Mode, c.Distance, c.Speed, c.Turns)
}

// ToMap returns the flat key-value form of the command.
func (c Command) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"mode":     c.Mode.String(),
		"speed":    c.Speed,
		"distance": c.Distance,
		"turns":    c.Turns,
	}
}

// CommandFromMap builds a Command from its flat form. A missing mode means a relative
// motion, missing numbers are zero.
func CommandFromMap(m map[string]interface{}) (c Command, err error) {
	c.Mode = ModeRelative
	if raw, ok := m["mode"]; ok {
		s, ok := raw.(string)
		if !ok {
			return c, errs.ValidationError{Field: "mode"}
		}
		if c.Mode, err = ParseMode(s); err != nil {
			return
		}
	}

	if c.Speed, err = floatField(m, "speed"); err != nil {
		return
	}
	if c.Distance, err = floatField(m, "distance"); err != nil {
		return
	}
	c.Turns, err = floatField(m, "turns")
	return
}

func floatField(m map[string]interface{}, key string) (float64, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return 0, nil
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f, nil
		}
	}
	return 0, errs.ValidationError{Field: key, Reason: fmt.Sprintf("%v is not a number", raw)}
}
