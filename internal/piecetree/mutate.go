package piecetree

// ---- CRLF predicates and repair ----

// shouldCheckCRLF reports whether CRLF-straddle checks are necessary.
// Once a document is known to be fully normalized to "\n", splitting
// a "\r\n" across pieces cannot happen, so the checks are skipped.
func (e *Engine) shouldCheckCRLF() bool {
	return !(e.eolNormalized && e.eol == "\n")
}

func startWithLF(s string) bool {
	return len(s) > 0 && s[0] == '\n'
}

func endWithCR(s string) bool {
	return len(s) > 0 && s[len(s)-1] == '\r'
}

func (e *Engine) nodeStartsWithLF(node *treeNode) bool {
	if node == sentinel || node.piece.Length == 0 {
		return false
	}
	buf := &e.buffers[node.piece.BufferIndex]
	off := e.offsetInBuffer(node.piece.BufferIndex, node.piece.Start)
	return buf.Buffer[off] == '\n'
}

func (e *Engine) nodeEndsWithCR(node *treeNode) bool {
	if node == sentinel || node.piece.Length == 0 {
		return false
	}
	buf := &e.buffers[node.piece.BufferIndex]
	off := e.offsetInBuffer(node.piece.BufferIndex, node.piece.End)
	return buf.Buffer[off-1] == '\r'
}

// nodeCharCodeAt returns the byte at cursor within bufferIndex's
// backing buffer, or 0 if cursor is at or past the buffer's end.
func (e *Engine) nodeCharCodeAt(bufferIndex int, cursor BufferCursor) byte {
	buf := &e.buffers[bufferIndex]
	off := e.offsetInBuffer(bufferIndex, cursor)
	if off < 0 || off >= len(buf.Buffer) {
		return 0
	}
	return buf.Buffer[off]
}

// cursorAtBufferOffset converts a raw byte offset within bufferIndex
// back into a BufferCursor via its line-starts table.
func (e *Engine) cursorAtBufferOffset(bufferIndex, offset int) BufferCursor {
	buf := &e.buffers[bufferIndex]
	lo, hi := 0, len(buf.LineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if buf.LineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return BufferCursor{Line: lo, Column: offset - buf.LineStarts[lo]}
}

// validateCRLFWithPrevNode repairs node's start against its
// predecessor's end when they form a split "\r\n".
func (e *Engine) validateCRLFWithPrevNode(node *treeNode) {
	if !e.shouldCheckCRLF() || node == sentinel {
		return
	}
	if e.nodeStartsWithLF(node) {
		prev := node.prev()
		if prev != sentinel && e.nodeEndsWithCR(prev) {
			e.fixCRLF(prev, node)
		}
	}
}

// validateCRLFWithNextNode repairs node's end against its
// successor's start when they form a split "\r\n".
func (e *Engine) validateCRLFWithNextNode(node *treeNode) {
	if !e.shouldCheckCRLF() || node == sentinel {
		return
	}
	if e.nodeEndsWithCR(node) {
		next := node.next()
		if next != sentinel && e.nodeStartsWithLF(next) {
			e.fixCRLF(node, next)
		}
	}
}

// adjustCarriageReturnFromNext folds node's successor's leading '\n'
// into value when node ends with '\r', value starts with '\n', and
// that successor also starts with '\n': inserting value right after
// node would otherwise leave node's trailing '\r' paired with value's
// own '\n' while the successor's original leading '\n' goes orphaned.
// Pulling it into value instead keeps the repair local to the single
// new piece being spliced in. Returns the adjusted value and whether
// an adjustment was made.
func (e *Engine) adjustCarriageReturnFromNext(value string, node *treeNode) (string, bool) {
	if !e.shouldCheckCRLF() || !e.nodeEndsWithCR(node) || !startWithLF(value) {
		return value, false
	}
	next := node.next()
	if !e.nodeStartsWithLF(next) {
		return value, false
	}

	value += "\n"
	if next.piece.Length == 1 {
		e.rbDelete(next)
	} else {
		piece := next.piece
		newStart := BufferCursor{Line: piece.Start.Line + 1, Column: 0}
		newLength := piece.Length - 1
		newLFCnt := e.getLineFeedCnt(piece.BufferIndex, newStart, piece.End)
		next.piece.Start = newStart
		next.piece.Length = newLength
		next.piece.LineFeedCnt = newLFCnt
		e.updateTreeMetadata(next, -1, -1)
	}
	return value, true
}

// fixCRLF merges a "\r" tailing prev and a "\n" heading next into a
// single new piece containing the literal "\r\n", shrinking (and, if
// now empty, deleting) prev and next around it.
func (e *Engine) fixCRLF(prev, next *treeNode) {
	var nodesToDel []*treeNode

	prevEndOffset := e.offsetInBuffer(prev.piece.BufferIndex, prev.piece.End)
	newPrevEnd := e.cursorAtBufferOffset(prev.piece.BufferIndex, prevEndOffset-1)
	e.deleteNodeTail(prev, newPrevEnd)
	if prev.piece.Length == 0 {
		nodesToDel = append(nodesToDel, prev)
	}

	nextStartOffset := e.offsetInBuffer(next.piece.BufferIndex, next.piece.Start)
	newNextStart := e.cursorAtBufferOffset(next.piece.BufferIndex, nextStartOffset+1)
	e.deleteNodeHead(next, newNextStart)
	if next.piece.Length == 0 {
		nodesToDel = append(nodesToDel, next)
	}

	newPieces := e.createNewPieces("\r\n")
	tmpNode := prev
	for _, p := range newPieces {
		tmpNode = e.rbInsertRight(tmpNode, p)
	}

	e.deleteNodes(nodesToDel)
}

// ---- piece/buffer mutation helpers ----

// appendToNode extends node's piece, and the change buffer underneath
// it, by value. Only valid when node's piece is the most recently
// written region of the change buffer (the Insert fast path).
func (e *Engine) appendToNode(node *treeNode, value string) {
	if v, adjusted := e.adjustCarriageReturnFromNext(value, node); adjusted {
		value = v
	}

	hitCRLF := e.shouldCheckCRLF() && endWithCR(string(e.buffers[0].Buffer)) && startWithLF(value)

	startOffset := len(e.buffers[0].Buffer)
	e.buffers[0].Buffer = append(e.buffers[0].Buffer, value...)

	if hitCRLF {
		// The analyzer previously recorded a line start right after
		// the lone '\r'; now that '\n' arrives, '\r\n' is one
		// terminator, not two, so that line start must be removed.
		e.buffers[0].LineStarts = e.buffers[0].LineStarts[:len(e.buffers[0].LineStarts)-1]
		e.lastChangeBufferPos = e.cursorAtBufferOffset(0, startOffset-1)
	}

	added := Analyze([]byte(value))
	for _, off := range added.Offsets[1:] {
		e.buffers[0].LineStarts = append(e.buffers[0].LineStarts, startOffset+off)
	}

	lineFeedCnt := len(added.Offsets) - 1
	deltaLineFeedCnt := lineFeedCnt
	if hitCRLF {
		deltaLineFeedCnt = lineFeedCnt - 1
	}

	node.piece.Length += len(value)
	node.piece.LineFeedCnt += deltaLineFeedCnt
	node.piece.End = BufferCursor{
		Line:   len(e.buffers[0].LineStarts) - 1,
		Column: len(e.buffers[0].Buffer) - e.buffers[0].LineStarts[len(e.buffers[0].LineStarts)-1],
	}
	e.lastChangeBufferPos = node.piece.End

	e.updateTreeMetadata(node, len(value), deltaLineFeedCnt)
}

func isUTF8Continuation(b byte) bool {
	return b&0xC0 == 0x80
}

// createNewPieces splits text into one or more Pieces. Text at or
// under AverageBufferSize lands in the mutable change buffer; larger
// text is chunked into new immutable original buffers, never
// splitting a chunk boundary across a UTF-8 rune or right after a
// lone '\r' (the latter, paired with the next chunk's possible
// leading '\n', is repaired by the general CRLF protocol once both
// pieces exist in the tree).
func (e *Engine) createNewPieces(text string) []Piece {
	if len(text) <= e.averageBufferSize {
		if text == "" {
			return nil
		}
		return []Piece{e.createNewPieceInChangeBuffer(text)}
	}

	var pieces []Piece
	for len(text) > e.averageBufferSize {
		splitAt := e.averageBufferSize
		if text[splitAt-1] == '\r' {
			splitAt--
		}
		for splitAt > 0 && isUTF8Continuation(text[splitAt]) {
			splitAt--
		}

		chunk := text[:splitAt]
		text = text[splitAt:]

		ls := Analyze([]byte(chunk))
		buf := StringBuffer{Buffer: []byte(chunk), LineStarts: ls.Offsets}
		e.buffers = append(e.buffers, buf)

		pieces = append(pieces, Piece{
			BufferIndex: len(e.buffers) - 1,
			Start:       BufferCursor{Line: 0, Column: 0},
			End:         BufferCursor{Line: len(ls.Offsets) - 1, Column: len(chunk) - ls.Offsets[len(ls.Offsets)-1]},
			Length:      len(chunk),
			LineFeedCnt: len(ls.Offsets) - 1,
		})
	}

	if len(text) > 0 {
		pieces = append(pieces, e.createNewPieceInChangeBuffer(text))
	}

	return pieces
}

func (e *Engine) createNewPieceInChangeBuffer(text string) Piece {
	startOffset := len(e.buffers[0].Buffer)
	startCursor := e.lastChangeBufferPos

	e.buffers[0].Buffer = append(e.buffers[0].Buffer, text...)
	ls := Analyze([]byte(text))
	for _, off := range ls.Offsets[1:] {
		e.buffers[0].LineStarts = append(e.buffers[0].LineStarts, startOffset+off)
	}

	endCursor := BufferCursor{
		Line:   len(e.buffers[0].LineStarts) - 1,
		Column: len(e.buffers[0].Buffer) - e.buffers[0].LineStarts[len(e.buffers[0].LineStarts)-1],
	}
	e.lastChangeBufferPos = endCursor

	return Piece{
		BufferIndex: 0,
		Start:       startCursor,
		End:         endCursor,
		Length:      len(text),
		LineFeedCnt: len(ls.Offsets) - 1,
	}
}

// deleteNodeTail shrinks node's piece so it ends at newEnd.
func (e *Engine) deleteNodeTail(node *treeNode, newEnd BufferCursor) {
	piece := node.piece
	oldLength := piece.Length
	oldLFCnt := piece.LineFeedCnt

	newLength := e.offsetInBuffer(piece.BufferIndex, newEnd) - e.offsetInBuffer(piece.BufferIndex, piece.Start)
	newLFCnt := e.getLineFeedCnt(piece.BufferIndex, piece.Start, newEnd)

	node.piece.End = newEnd
	node.piece.Length = newLength
	node.piece.LineFeedCnt = newLFCnt

	e.updateTreeMetadata(node, newLength-oldLength, newLFCnt-oldLFCnt)
}

// deleteNodeHead shrinks node's piece so it starts at newStart.
func (e *Engine) deleteNodeHead(node *treeNode, newStart BufferCursor) {
	piece := node.piece
	oldLength := piece.Length
	oldLFCnt := piece.LineFeedCnt

	newLength := e.offsetInBuffer(piece.BufferIndex, piece.End) - e.offsetInBuffer(piece.BufferIndex, newStart)
	newLFCnt := e.getLineFeedCnt(piece.BufferIndex, newStart, piece.End)

	node.piece.Start = newStart
	node.piece.Length = newLength
	node.piece.LineFeedCnt = newLFCnt

	e.updateTreeMetadata(node, newLength-oldLength, newLFCnt-oldLFCnt)
}

// shrinkNode removes the interior span [start, end) from node's
// piece: node keeps [pieceStart, start), and a new node is inserted
// to its right holding [end, pieceEnd).
func (e *Engine) shrinkNode(node *treeNode, start, end BufferCursor) {
	piece := node.piece
	oldEnd := piece.End

	newRightPiece := Piece{
		BufferIndex: piece.BufferIndex,
		Start:       end,
		End:         oldEnd,
		Length:      e.offsetInBuffer(piece.BufferIndex, oldEnd) - e.offsetInBuffer(piece.BufferIndex, end),
		LineFeedCnt: e.getLineFeedCnt(piece.BufferIndex, end, oldEnd),
	}

	e.deleteNodeTail(node, start)

	if newRightPiece.Length > 0 {
		newNode := e.rbInsertRight(node, newRightPiece)
		e.validateCRLFWithPrevNode(newNode)
	}
}

func (e *Engine) deleteNodes(nodes []*treeNode) {
	for _, n := range nodes {
		e.rbDelete(n)
	}
}

// insertContentToNodeLeft inserts value immediately before node.
func (e *Engine) insertContentToNodeLeft(value string, node *treeNode) {
	var nodesToDel []*treeNode

	if e.shouldCheckCRLF() && endWithCR(value) && e.nodeStartsWithLF(node) {
		// Move node's leading '\n' into value so the two halves of
		// the CRLF being formed land in the same new piece.
		piece := node.piece
		newStart := BufferCursor{Line: piece.Start.Line + 1, Column: 0}
		newLFCnt := e.getLineFeedCnt(piece.BufferIndex, newStart, piece.End)
		newLength := piece.Length - 1

		node.piece.Start = newStart
		node.piece.Length = newLength
		node.piece.LineFeedCnt = newLFCnt
		e.updateTreeMetadata(node, -1, -1)

		value += "\n"
		if node.piece.Length == 0 {
			nodesToDel = append(nodesToDel, node)
		}
	}

	newPieces := e.createNewPieces(value)
	if len(newPieces) == 0 {
		return
	}

	firstNode := e.rbInsertLeft(node, newPieces[0])
	tmpNode := firstNode
	for _, p := range newPieces[1:] {
		tmpNode = e.rbInsertRight(tmpNode, p)
	}
	e.validateCRLFWithPrevNode(firstNode)
	e.deleteNodes(nodesToDel)
}

// insertContentToNodeRight inserts value immediately after node.
func (e *Engine) insertContentToNodeRight(value string, node *treeNode) {
	if v, adjusted := e.adjustCarriageReturnFromNext(value, node); adjusted {
		value = v
	}

	newPieces := e.createNewPieces(value)
	if len(newPieces) == 0 {
		return
	}
	firstNode := e.rbInsertRight(node, newPieces[0])
	tmpNode := firstNode
	for _, p := range newPieces[1:] {
		tmpNode = e.rbInsertRight(tmpNode, p)
	}
	e.validateCRLFWithPrevNode(firstNode)
}

// ---- public mutation API ----

// Insert splices value into the document at the given byte offset.
// offset is clamped to [0, GetLength()].
func (e *Engine) Insert(offset int, value string) {
	if len(value) == 0 {
		return
	}
	if offset < 0 {
		offset = 0
	}
	if offset > e.length {
		offset = e.length
	}

	e.lastVisitedLine.lineNumber = 0
	e.lastVisitedLine.value = ""
	e.eolNormalized = false

	if e.root != sentinel {
		pos := e.nodeAt(offset)
		node := pos.node
		remainder := pos.remainder
		nodeStartOffset := pos.nodeStartOffset
		piece := node.piece

		if piece.BufferIndex == 0 &&
			piece.End.Line == e.lastChangeBufferPos.Line &&
			piece.End.Column == e.lastChangeBufferPos.Column &&
			nodeStartOffset+piece.Length == offset &&
			len(value) < e.averageBufferSize {
			e.appendToNode(node, value)
			e.computeBufferMetadata()
			return
		}

		switch {
		case nodeStartOffset == offset:
			e.insertContentToNodeLeft(value, node)
			e.cache.validate(offset)

		case nodeStartOffset+piece.Length > offset:
			insertPos := e.positionInBuffer(node, remainder)
			newRightPiece := Piece{
				BufferIndex: piece.BufferIndex,
				Start:       insertPos,
				End:         piece.End,
				Length:      e.offsetInBuffer(piece.BufferIndex, piece.End) - e.offsetInBuffer(piece.BufferIndex, insertPos),
				LineFeedCnt: e.getLineFeedCnt(piece.BufferIndex, insertPos, piece.End),
			}

			var nodesToDel []*treeNode

			if e.shouldCheckCRLF() && endWithCR(value) {
				if e.nodeCharCodeAt(piece.BufferIndex, insertPos) == '\n' {
					newStart := BufferCursor{Line: newRightPiece.Start.Line + 1, Column: 0}
					newRightPiece.Start = newStart
					newRightPiece.Length--
					newRightPiece.LineFeedCnt = e.getLineFeedCnt(piece.BufferIndex, newStart, newRightPiece.End)
					value += "\n"
				}
			}

			if e.shouldCheckCRLF() && startWithLF(value) {
				insertOffset := e.offsetInBuffer(piece.BufferIndex, insertPos)
				if insertOffset > 0 && e.buffers[piece.BufferIndex].Buffer[insertOffset-1] == '\r' {
					newTailEnd := e.cursorAtBufferOffset(piece.BufferIndex, insertOffset-1)
					e.deleteNodeTail(node, newTailEnd)
					value = "\r" + value
					if node.piece.Length == 0 {
						nodesToDel = append(nodesToDel, node)
					}
				} else {
					e.deleteNodeTail(node, insertPos)
				}
			} else {
				e.deleteNodeTail(node, insertPos)
			}

			newPieces := e.createNewPieces(value)

			tmpNode := node
			for _, p := range newPieces {
				tmpNode = e.rbInsertRight(tmpNode, p)
			}
			if newRightPiece.Length > 0 {
				e.rbInsertRight(tmpNode, newRightPiece)
			}

			e.deleteNodes(nodesToDel)

		default:
			e.insertContentToNodeRight(value, node)
		}
	} else {
		newPieces := e.createNewPieces(value)
		if len(newPieces) > 0 {
			tmpNode := e.rbInsertLeft(nil, newPieces[0])
			for _, p := range newPieces[1:] {
				tmpNode = e.rbInsertRight(tmpNode, p)
			}
		}
	}

	e.computeBufferMetadata()
}

// Delete removes cnt bytes starting at offset. Both are clamped to
// the document's valid range; a non-positive cnt after clamping is a
// no-op.
func (e *Engine) Delete(offset, cnt int) {
	e.lastVisitedLine.lineNumber = 0
	e.lastVisitedLine.value = ""

	if offset < 0 {
		offset = 0
	}
	if cnt < 0 {
		cnt = 0
	}
	if cnt > e.length-offset {
		cnt = e.length - offset
	}
	if cnt <= 0 || e.root == sentinel {
		return
	}

	startPos := e.nodeAt(offset)
	endPos := e.nodeAt(offset + cnt)

	startNode := startPos.node
	endNode := endPos.node

	if startNode == endNode {
		startSplit := e.positionInBuffer(startNode, startPos.remainder)
		endSplit := e.positionInBuffer(startNode, endPos.remainder)

		if startPos.nodeStartOffset == offset {
			if cnt == startNode.piece.Length {
				// whole piece removed
				next := startNode.next()
				e.rbDelete(startNode)
				e.validateCRLFWithPrevNode(next)
				e.computeBufferMetadata()
				return
			}
			e.deleteNodeHead(startNode, endSplit)
			e.cache.validate(offset)
			e.validateCRLFWithPrevNode(startNode)
			e.computeBufferMetadata()
			return
		}

		if startPos.nodeStartOffset+startNode.piece.Length == offset+cnt {
			e.deleteNodeTail(startNode, startSplit)
			e.validateCRLFWithNextNode(startNode)
			e.computeBufferMetadata()
			return
		}

		e.shrinkNode(startNode, startSplit, endSplit)
		e.computeBufferMetadata()
		return
	}

	// multi-node deletion
	var nodesToDel []*treeNode

	startSplit := e.positionInBuffer(startNode, startPos.remainder)
	e.deleteNodeTail(startNode, startSplit)
	if startNode.piece.Length == 0 {
		nodesToDel = append(nodesToDel, startNode)
	}

	endSplit := e.positionInBuffer(endNode, endPos.remainder)
	e.deleteNodeHead(endNode, endSplit)
	if endNode.piece.Length == 0 {
		nodesToDel = append(nodesToDel, endNode)
	}

	for n := startNode.next(); n != sentinel && n != endNode; n = n.next() {
		nodesToDel = append(nodesToDel, n)
	}

	prev := startNode
	if startNode.piece.Length == 0 {
		prev = startNode.prev()
	}

	e.deleteNodes(nodesToDel)
	e.validateCRLFWithNextNode(prev)
	e.computeBufferMetadata()
}
