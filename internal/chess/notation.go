package chess

import (
	"fmt"
	"sort"
	"strings"

	nchess "github.com/notnil/chess"
)

// SAN renders m, which must be legal in b, in standard algebraic notation
// with check and mate suffixes. The text comes from notnil/chess; Validate
// stays the judge of legality, and a move notnil does not know is written
// in UCI instead.
func SAN(b Board, m Move) string {
	opt, err := nchess.FEN(b.FEN())
	if err != nil {
		return m.String()
	}
	game := nchess.NewGame(opt)
	uci := m.String()
	for _, mv := range game.ValidMoves() {
		if mv.String() == uci {
			return nchess.AlgebraicNotation{}.Encode(game.Position(), mv)
		}
	}
	return uci
}

// PGN renders a game as PGN text. tags are emitted in sorted order after the
// seven-tag roster entries that are present.
func PGN(initial Board, sans []string, result GameResult, tags map[string]string) string {
	var sb strings.Builder
	roster := []string{"Event", "Site", "Date", "Round", "White", "Black"}
	seen := map[string]bool{"Result": true}
	for _, k := range roster {
		if v, ok := tags[k]; ok {
			fmt.Fprintf(&sb, "[%s %q]\n", k, v)
			seen[k] = true
		}
	}
	fmt.Fprintf(&sb, "[Result %q]\n", result.Notation())
	if initial.FEN() != StartFEN {
		fmt.Fprintf(&sb, "[SetUp \"1\"]\n[FEN %q]\n", initial.FEN())
		seen["SetUp"], seen["FEN"] = true, true
	}
	extra := make([]string, 0, len(tags))
	for k := range tags {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		fmt.Fprintf(&sb, "[%s %q]\n", k, tags[k])
	}
	sb.WriteByte('\n')

	moveNo := initial.fullMoves
	black := initial.turn == Black
	for i, san := range sans {
		switch {
		case !black:
			fmt.Fprintf(&sb, "%d. ", moveNo)
		case i == 0:
			fmt.Fprintf(&sb, "%d... ", moveNo)
		}
		sb.WriteString(san)
		sb.WriteByte(' ')
		if black {
			moveNo++
		}
		black = !black
	}
	sb.WriteString(result.Notation())
	return sb.String()
}
