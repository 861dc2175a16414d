package report

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// PoseDelta is the default tolerance when comparing positions
const PoseDelta = 0.0999

// Compare checks actual against expected.  Entries are matched by image
// file name and every pose position must agree within delta on each axis.
// All differences found are returned combined, nil when the reports agree.
func Compare(expected, actual Report, delta float64) error {

	byImage := make(map[string]Entry, len(actual))

	for _, e := range actual {
		byImage[e.ImagePath] = e
	}

	var errs error

	if len(expected) != len(actual) {
		errs = multierr.Append(errs, fmt.Errorf("expected %d entries, got %d",
			len(expected), len(actual)))
	}

	for _, exp := range expected {
		act, ok := byImage[exp.ImagePath]

		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%s: missing", exp.ImagePath))
			continue
		}

		errs = multierr.Append(errs, compareEntry(exp, act, delta))
	}

	return errs
}

func compareEntry(exp, act Entry, delta float64) error {

	if exp.Skipped() != act.Skipped() {
		return fmt.Errorf("%s: expected skipped=%t, got skipped=%t",
			exp.ImagePath, exp.Skipped(), act.Skipped())
	}

	expPos := exp.Positions()
	actPos := act.Positions()

	if len(expPos) != len(actPos) {
		return fmt.Errorf("%s: expected %d poses, got %d", exp.ImagePath, len(expPos), len(actPos))
	}

	var errs error

	for i := range expPos {
		e, a := expPos[i], actPos[i]

		if e == nil || a == nil {
			if e != a {
				errs = multierr.Append(errs, fmt.Errorf("%s: pose %d localized mismatch",
					exp.ImagePath, i))
			}
			continue
		}

		if !similar(e.X, a.X, delta) || !similar(e.Y, a.Y, delta) || !similar(e.Z, a.Z, delta) {
			errs = multierr.Append(errs, fmt.Errorf("%s: pose %d position %v differs from %v by more than %v",
				exp.ImagePath, i, *a, *e, delta))
		}
	}

	return errs
}

func similar(a, b, delta float64) bool {
	return math.Abs(a-b) <= delta
}
