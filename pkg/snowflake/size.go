package snowflake

import (
	"strings"

	"github.com/pkg/errors"
)

// canonical warehouse sizes keyed by their normalised spellings.
var sizes = map[string]string{
	"XSMALL":   "XSMALL",
	"SMALL":    "SMALL",
	"MEDIUM":   "MEDIUM",
	"LARGE":    "LARGE",
	"XLARGE":   "XLARGE",
	"XXLARGE":  "XXLARGE",
	"X2LARGE":  "XXLARGE",
	"2XLARGE":  "XXLARGE",
	"XXXLARGE": "XXXLARGE",
	"X3LARGE":  "XXXLARGE",
	"3XLARGE":  "XXXLARGE",
	"X4LARGE":  "X4LARGE",
	"4XLARGE":  "X4LARGE",
	"X5LARGE":  "X5LARGE",
	"5XLARGE":  "X5LARGE",
	"X6LARGE":  "X6LARGE",
	"6XLARGE":  "X6LARGE",
}

// NormalizeSize maps any accepted spelling of a warehouse size (X-Small,
// XSMALL, 2X-Large, X2LARGE...) to its canonical form.
func NormalizeSize(size string) (string, error) {
	key := strings.ToUpper(strings.NewReplacer("-", "", "_", "", " ", "").Replace(size))
	if canonical, ok := sizes[key]; ok {
		return canonical, nil
	}

	return "", errors.Errorf("unknown warehouse size: %q", size)
}

// SameSize reports whether a and b name the same warehouse size.
func SameSize(a, b string) bool {
	na, errA := NormalizeSize(a)
	nb, errB := NormalizeSize(b)
	return errA == nil && errB == nil && na == nb
}
