package grid

// Note is the annotation attached to one count of the grid.
type Note struct {
	Cell
	Text string `json:"text"`
}

// EmptyNotes returns one blank note per cell.
func EmptyNotes(cells []Cell) []Note {
	notes := make([]Note, len(cells))
	for i, c := range cells {
		notes[i] = Note{Cell: c}
	}
	return notes
}

// Merge builds the notes for a freshly computed grid, carrying text over from
// existing notes whose (measure, count) key is still present. Existing notes
// with keys outside the new grid are dropped; new keys start empty.
func Merge(cells []Cell, existing []Note) []Note {
	text := make(map[Key]string, len(existing))
	for _, n := range existing {
		text[n.Key()] = n.Text
	}

	notes := make([]Note, len(cells))
	for i, c := range cells {
		notes[i] = Note{Cell: c, Text: text[c.Key()]}
	}
	return notes
}
