package sliceutils

// RemoveDuplicates removes any duplicate entries from a list, keeping the
// first occurrence of each.
func RemoveDuplicates[T comparable](in []T) []T {
	dupMap := make(map[T]bool)
	var out []T
	for _, v := range in {
		if _, ok := dupMap[v]; !ok {
			dupMap[v] = true
			out = append(out, v)
		}
	}
	return out
}

// ToSet builds a membership set from a list.
func ToSet[T comparable](in []T) map[T]struct{} {
	out := make(map[T]struct{}, len(in))
	for _, v := range in {
		out[v] = struct{}{}
	}
	return out
}
