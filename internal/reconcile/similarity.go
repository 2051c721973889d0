package reconcile

// similarity returns a match ratio in [0,1] over runes: twice the total size
// of the longest-common matching blocks divided by the combined length. The
// blocks are found greedily, longest first, then recursively on both sides,
// which keeps the score stable for reordered suffixes.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	matched := matchedSize(ra, rb, 0, len(ra), 0, len(rb))
	return 2 * float64(matched) / float64(total)
}

func matchedSize(a, b []rune, alo, ahi, blo, bhi int) int {
	ai, bi, size := longestMatch(a, b, alo, ahi, blo, bhi)
	if size == 0 {
		return 0
	}
	return size +
		matchedSize(a, b, alo, ai, blo, bi) +
		matchedSize(a, b, ai+size, ahi, bi+size, bhi)
}

// longestMatch finds the longest run of identical runes within the given
// windows, preferring the earliest occurrence on ties.
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (bestA, bestB, bestSize int) {
	b2j := make(map[rune][]int, bhi-blo)
	for j := blo; j < bhi; j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	bestA, bestB = alo, blo
	lengths := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range b2j[a[i]] {
			k := lengths[j-1] + 1
			next[j] = k
			if k > bestSize {
				bestA, bestB, bestSize = i-k+1, j-k+1, k
			}
		}
		lengths = next
	}
	return bestA, bestB, bestSize
}
