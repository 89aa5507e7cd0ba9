package piecetree

// Snapshot is a lazy, streaming view over the pieces of an Engine at
// the moment CreateSnapshot was called. It holds copies of the Piece
// values (not the tree nodes themselves), so later mutation of the
// originating Engine cannot corrupt or invalidate it; it simply
// stops reflecting new edits.
type Snapshot struct {
	engine  *Engine
	pieces  []Piece
	index   int
	bom     string
	doneBOM bool
}

// CreateSnapshot captures the engine's current piece sequence. bom,
// if non-empty, is emitted once as a prefix by the first Read call.
func (e *Engine) CreateSnapshot(bom string) *Snapshot {
	pieces := make([]Piece, 0, 16)
	e.iterate(e.root, func(n *treeNode) bool {
		pieces = append(pieces, n.piece)
		return true
	})
	return &Snapshot{engine: e, pieces: pieces, bom: bom}
}

// Read returns the next chunk of the snapshot's content, or ("",
// false) once exhausted. The BOM, if any, is prepended to the first
// returned chunk.
func (s *Snapshot) Read() (string, bool) {
	if !s.doneBOM {
		s.doneBOM = true
		if s.index >= len(s.pieces) {
			if s.bom == "" {
				return "", false
			}
			return s.bom, true
		}
		content := s.engine.getPieceContent(s.pieces[s.index])
		s.index++
		return s.bom + content, true
	}

	if s.index >= len(s.pieces) {
		return "", false
	}
	content := s.engine.getPieceContent(s.pieces[s.index])
	s.index++
	return content, true
}

// ReadAll drains the snapshot and concatenates every chunk.
func (s *Snapshot) ReadAll() string {
	var out []byte
	for {
		chunk, ok := s.Read()
		if !ok {
			break
		}
		out = append(out, chunk...)
	}
	return string(out)
}
