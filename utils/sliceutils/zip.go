package sliceutils

// Pair is one element of a zipped list.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Zip pairs up the elements of two lists. The result is as long as the
// shorter of the two.
func Zip[A, B any](a []A, b []B) []Pair[A, B] {
	n := min(len(a), len(b))
	out := make([]Pair[A, B], 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Pair[A, B]{First: a[i], Second: b[i]})
	}
	return out
}
