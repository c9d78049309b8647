//go:build !tensorview_unchecked

package tensorview

import "github.com/pkg/errors"

// BoundsChecked reports whether per-dimension index checks are compiled in.
const BoundsChecked = true

// checkIndex panics when i is outside [0, n). The flat offset is still
// bounds-checked by the runtime; this catches indices that would silently
// wrap into a neighbouring row.
func checkIndex(i, n int) {
	if uint(i) >= uint(n) {
		panic(errors.Wrapf(ErrIndex, "index %d outside [0,%d)", i, n))
	}
}
