package testing

// FanOut pairs the first id with each of the others e.g. [0, 1, 2, 3] -> [[0,1], [0,2], [0,3]].
// Pairs read as (source, target) edges.
func FanOut(ids []int64) [][2]int64 {
	if len(ids) < 2 {
		return nil
	}
	pairs := make([][2]int64, 0, len(ids)-1)
	for i := 1; i < len(ids); i++ {
		pairs = append(pairs, [2]int64{ids[0], ids[i]})
	}

	return pairs
}

// Reverse returns reversed copy of s
func Reverse[T any](s []T) []T {
	reversed := make([]T, len(s))
	copy(reversed, s)

	for i := len(reversed)/2 - 1; i >= 0; i-- {
		opp := len(reversed) - 1 - i
		reversed[i], reversed[opp] = reversed[opp], reversed[i]
	}

	return reversed
}
