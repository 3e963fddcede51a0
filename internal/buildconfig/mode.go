package buildconfig

import (
	"fmt"
	"strings"
)

// Mode selects the naming, source map and minimization strategy for a build.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// Modes lists the accepted modes, in the order the CLI documents them.
var Modes = []Mode{Development, Production}

// ParseMode validates a mode string. Surrounding whitespace is ignored, case is not.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case Development, Production:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (expected %s or %s)", ErrUnknownMode, s, Development, Production)
	}
}

// IsProduction reports whether m is exactly Production. Every other value takes the
// development branch.
func (m Mode) IsProduction() bool {
	return m == Production
}

func (m Mode) String() string {
	return string(m)
}
