package report

// glyphs is a 3x5 pixel font covering what a count can contain.
var glyphs = map[rune][5]string{
	'0': {"###", "#.#", "#.#", "#.#", "###"},
	'1': {".#.", "##.", ".#.", ".#.", "###"},
	'2': {"###", "..#", "###", "#..", "###"},
	'3': {"###", "..#", ".##", "..#", "###"},
	'4': {"#.#", "#.#", "###", "..#", "..#"},
	'5': {"###", "#..", "###", "..#", "###"},
	'6': {"###", "#..", "###", "#.#", "###"},
	'7': {"###", "..#", ".#.", ".#.", ".#."},
	'8': {"###", "#.#", "###", "#.#", "###"},
	'9': {"###", "#.#", "###", "..#", "###"},
	'-': {"...", "...", "###", "...", "..."},
	' ': {"...", "...", "...", "...", "..."},
	'?': {"###", "..#", ".##", "...", ".#."},
}

const (
	glyphWidth  = 3
	glyphHeight = 5
)

// column is one vertical slice of rendered text, top to bottom.
type column [glyphHeight]bool

// renderColumns lays text out left to right with one blank column
// between glyphs. Unknown runes render as '?'.
func renderColumns(text string) []column {
	var cols []column
	for i, r := range text {
		g, ok := glyphs[r]
		if !ok {
			g = glyphs['?']
		}
		if i > 0 {
			cols = append(cols, column{})
		}
		for x := 0; x < glyphWidth; x++ {
			var c column
			for y := 0; y < glyphHeight; y++ {
				c[y] = g[y][x] == '#'
			}
			cols = append(cols, c)
		}
	}
	return cols
}
