package scoring

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Color is a traffic-light classification. The zero value is Red.
type Color int

const (
	ColorRed Color = iota
	ColorYellow
	ColorGreen
)

// AllColors lists colors from worst to best.
var AllColors = []Color{ColorRed, ColorYellow, ColorGreen}

// Rank orders colors red < yellow < green.
func (c Color) Rank() int {
	return int(c)
}

func (c Color) String() string {
	switch c {
	case ColorGreen:
		return "green"
	case ColorYellow:
		return "yellow"
	default:
		return "red"
	}
}

// ParseColor is the inverse of String.
func ParseColor(s string) (Color, error) {
	switch s {
	case "green":
		return ColorGreen, nil
	case "yellow":
		return ColorYellow, nil
	case "red":
		return ColorRed, nil
	}
	return ColorRed, eris.Errorf("scoring: unknown color %q", s)
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "scoring: unmarshal color")
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
