package chess

// Perft counts the leaf nodes of the legal move tree to the given depth.
func Perft(b Board, depth int) uint64 {
	if depth <= 0 {
		return 1
	}
	moves := LegalMoves(b)
	if depth == 1 {
		return uint64(len(moves))
	}
	var nodes uint64
	for _, m := range moves {
		nodes += Perft(b.apply(m), depth-1)
	}
	return nodes
}

// Divide returns per-move perft counts, keyed by UCI notation.
func Divide(b Board, depth int) map[string]uint64 {
	out := make(map[string]uint64)
	for _, m := range LegalMoves(b) {
		out[m.String()] = Perft(b.apply(m), depth-1)
	}
	return out
}
