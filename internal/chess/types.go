package chess

// GameStatus is the transport-facing summary of a game's result.
type GameStatus string

const (
	StatusActive    GameStatus = "active"
	StatusDraw      GameStatus = "draw"
	StatusWhiteWon  GameStatus = "white_won"
	StatusBlackWon  GameStatus = "black_won"
	StatusAbandoned GameStatus = "abandoned"
)

type MoveResult struct {
	From      string `json:"from"`
	To        string `json:"to"`
	UCI       string `json:"uci"`
	SAN       string `json:"san"`
	FEN       string `json:"fen"`
	Check     bool   `json:"check"`
	Checkmate bool   `json:"checkmate"`
	Draw      bool   `json:"draw"`
	GameOver  bool   `json:"gameOver"`
	Result    string `json:"result"`

	// Repetitions is how often the resulting position has occurred.
	Repetitions int `json:"repetitions"`
}

// Color is the side a piece or player belongs to.
type Color uint8

const (
	White Color = iota
	Black
)

// Other returns the opposing color.
func (c Color) Other() Color {
	return c ^ 1
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// ParseColor accepts "white"/"w" and "black"/"b".
func ParseColor(s string) (Color, bool) {
	switch s {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	}
	return White, false
}

// PieceKind identifies a chess piece independent of its color.
type PieceKind uint8

const (
	NoPieceKind PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var pieceKindNames = [...]string{"", "pawn", "knight", "bishop", "rook", "queen", "king"}

func (k PieceKind) String() string {
	if int(k) < len(pieceKindNames) {
		return pieceKindNames[k]
	}
	return "unknown"
}

// Letter returns the lowercase FEN letter for the kind, or a space for NoPieceKind.
func (k PieceKind) Letter() byte {
	return " pnbrqk"[k]
}

// Piece is a colored chess piece. The zero value is an empty square.
type Piece struct {
	Kind  PieceKind
	Color Color
}

// IsEmpty reports whether p represents the absence of a piece.
func (p Piece) IsEmpty() bool {
	return p.Kind == NoPieceKind
}

// FENLetter is the FEN character for the piece: uppercase for white.
func (p Piece) FENLetter() byte {
	l := p.Kind.Letter()
	if p.Color == White {
		return l - 'a' + 'A'
	}
	return l
}

func pieceFromFEN(c byte) (Piece, bool) {
	color := Black
	if c >= 'A' && c <= 'Z' {
		color = White
		c = c - 'A' + 'a'
	}
	switch c {
	case 'p':
		return Piece{Pawn, color}, true
	case 'n':
		return Piece{Knight, color}, true
	case 'b':
		return Piece{Bishop, color}, true
	case 'r':
		return Piece{Rook, color}, true
	case 'q':
		return Piece{Queen, color}, true
	case 'k':
		return Piece{King, color}, true
	}
	return Piece{}, false
}

// MaterialCount represents the material count for both sides
type MaterialCount struct {
	White int `json:"white"`
	Black int `json:"black"`
}

// StandardPieceValues maps piece names to their standard values
var StandardPieceValues = map[string]int{
	"pawn":   1,
	"knight": 3,
	"bishop": 3,
	"rook":   5,
	"queen":  9,
	"king":   0, // King has no material value
}

// Material sums the standard piece values per side.
func Material(b Board) MaterialCount {
	var mc MaterialCount
	for sq := Square(0); sq < 64; sq++ {
		p := b.squares[sq]
		if p.IsEmpty() {
			continue
		}
		v := StandardPieceValues[p.Kind.String()]
		if p.Color == White {
			mc.White += v
		} else {
			mc.Black += v
		}
	}
	return mc
}

// Balance is white's material minus black's.
func (mc MaterialCount) Balance() int {
	return mc.White - mc.Black
}
