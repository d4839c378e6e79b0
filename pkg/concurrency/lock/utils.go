package lock

// removeAll returns s without any element equal to v, together with the
// number of elements dropped. A nil slice is returned when nothing remains.
func removeAll[T comparable](s []T, v T) ([]T, int) {
	kept := make([]T, 0, len(s))
	for _, e := range s {
		if e != v {
			kept = append(kept, e)
		}
	}
	removed := len(s) - len(kept)
	if len(kept) == 0 {
		return nil, removed
	}
	return kept, removed
}
