//go:build tensorview_unchecked

package tensorview

// BoundsChecked reports whether per-dimension index checks are compiled in.
const BoundsChecked = false

func checkIndex(int, int) {}
