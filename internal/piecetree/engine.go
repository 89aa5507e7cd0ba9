package piecetree

import "strings"

// AverageBufferSize is the default threshold (in bytes) above which
// inserted text is stored in its own new original buffer rather than
// appended to the change buffer. Factory.Create uses this value
// unless overridden via Factory.WithAverageBufferSize.
const AverageBufferSize = 65535

// DefaultCacheCapacity is the default number of entries kept in an
// Engine's search cache. Factory.Create uses this value unless
// overridden via Factory.WithCacheCapacity.
const DefaultCacheCapacity = 1

// Position is a 1-based line/column document position, matching the
// external interface convention described in spec section 6. Column
// is a byte offset from the start of the line.
type Position struct {
	Line   int
	Column int
}

// nodePosition locates a byte offset within the tree: the node whose
// piece contains it, how far into that piece the offset falls
// (remainder), and the accumulated document offset of the node's
// start.
type nodePosition struct {
	node            *treeNode
	remainder       int
	nodeStartOffset int
}

// Engine is a mutable, in-place piece-tree text buffer. It is not
// safe for concurrent use; see the package doc comment.
type Engine struct {
	buffers []StringBuffer // buffers[0] is the mutable change buffer
	root    *treeNode

	lineCnt int
	length  int

	eol           string
	eolLength     int
	eolNormalized bool

	// averageBufferSize is this engine's own copy of the
	// AverageBufferSize threshold (see Factory.WithAverageBufferSize).
	averageBufferSize int

	lastChangeBufferPos BufferCursor

	cache *searchCache

	lastVisitedLine struct {
		lineNumber int
		value      string
	}
}

// newEngine constructs an Engine over the given original buffers,
// chaining one Piece per non-empty buffer in order, with a fresh
// empty change buffer at index 0.
func newEngine(chunks []StringBuffer, eol string, eolNormalized bool, averageBufferSize, cacheCapacity int) *Engine {
	if averageBufferSize <= 0 {
		averageBufferSize = AverageBufferSize
	}
	if cacheCapacity <= 0 {
		cacheCapacity = DefaultCacheCapacity
	}
	e := &Engine{
		buffers:           make([]StringBuffer, 1, len(chunks)+1),
		root:              sentinel,
		eol:               eol,
		eolLength:         len(eol),
		eolNormalized:     eolNormalized,
		averageBufferSize: averageBufferSize,
		lineCnt:           1,
		cache:             newSearchCache(cacheCapacity),
	}
	e.buffers[0] = StringBuffer{Buffer: []byte{}, LineStarts: []int{0}}
	e.lastChangeBufferPos = BufferCursor{}

	var lastNode *treeNode
	for i := range chunks {
		chunk := chunks[i]
		if len(chunk.Buffer) == 0 {
			continue
		}
		if len(chunk.LineStarts) == 0 {
			chunk.LineStarts = AnalyzeFast(chunk.Buffer)
		}

		piece := Piece{
			BufferIndex: len(e.buffers),
			Start:       BufferCursor{Line: 0, Column: 0},
			End:         BufferCursor{Line: len(chunk.LineStarts) - 1, Column: len(chunk.Buffer) - chunk.LineStarts[len(chunk.LineStarts)-1]},
			Length:      len(chunk.Buffer),
			LineFeedCnt: len(chunk.LineStarts) - 1,
		}
		e.buffers = append(e.buffers, chunk)

		if lastNode == nil {
			lastNode = e.rbInsertLeft(nil, piece)
		} else {
			lastNode = e.rbInsertRight(lastNode, piece)
		}
	}

	e.computeBufferMetadata()
	return e
}

// GetLength returns the total document length in bytes.
func (e *Engine) GetLength() int { return e.length }

// GetLineCount returns the number of lines (newline count + 1).
func (e *Engine) GetLineCount() int { return e.lineCnt }

// computeBufferMetadata recomputes lineCnt/length from a single
// rightward walk down the rightmost spine, summing each node's
// lfLeft/sizeLeft plus its own piece contribution.
func (e *Engine) computeBufferMetadata() {
	x := e.root
	lfCnt := 1
	length := 0

	for x != sentinel {
		lfCnt += x.lfLeft + x.piece.LineFeedCnt
		length += x.sizeLeft + x.piece.Length
		x = x.right
	}

	e.lineCnt = lfCnt
	e.length = length
	e.cache.validate(e.length)
}

// ---- positional primitives ----

// offsetInBuffer returns the byte offset of cursor within the given
// backing buffer.
func (e *Engine) offsetInBuffer(bufferIndex int, cursor BufferCursor) int {
	b := &e.buffers[bufferIndex]
	return b.LineStarts[cursor.Line] + cursor.Column
}

// positionInBuffer locates the BufferCursor that is remainder bytes
// past the start of node's piece, by binary-searching node's backing
// buffer's line-starts table.
func (e *Engine) positionInBuffer(node *treeNode, remainder int) BufferCursor {
	piece := node.piece
	buf := &e.buffers[piece.BufferIndex]

	startOffset := buf.LineStarts[piece.Start.Line] + piece.Start.Column
	targetOffset := startOffset + remainder

	low := piece.Start.Line
	high := piece.End.Line

	var midLine, midStart, midStop int
	for low <= high {
		midLine = low + (high-low)/2
		midStart = buf.LineStarts[midLine]
		if midLine == high {
			midStop = len(buf.Buffer)
		} else {
			midStop = buf.LineStarts[midLine+1]
		}

		if targetOffset < midStart {
			high = midLine - 1
		} else if targetOffset >= midStop {
			low = midLine + 1
		} else {
			break
		}
	}

	return BufferCursor{Line: midLine, Column: targetOffset - midStart}
}

// getLineFeedCnt counts line feeds between start and end within
// bufferIndex's own line-starts table, with the CRLF-straddle
// correction: if end sits immediately after a lone '\r' whose paired
// '\n' starts the next line, that shared terminator must not be
// double counted or dropped.
func (e *Engine) getLineFeedCnt(bufferIndex int, start, end BufferCursor) int {
	if end.Column == 0 {
		return end.Line - start.Line
	}

	buf := &e.buffers[bufferIndex]
	if end.Line == len(buf.LineStarts)-1 {
		return end.Line - start.Line
	}

	nextLineStartOffset := buf.LineStarts[end.Line+1]
	endOffset := buf.LineStarts[end.Line] + end.Column
	if nextLineStartOffset > endOffset+1 {
		return end.Line - start.Line
	}
	if nextLineStartOffset == endOffset+1 {
		if endOffset > 0 && buf.Buffer[endOffset-1] == '\r' {
			return end.Line - start.Line + 1
		}
	}
	return end.Line - start.Line
}

// getAccumulatedValue returns the byte length of the first index+1
// lines of node's piece (clamped to the piece's own end).
func (e *Engine) getAccumulatedValue(node *treeNode, index int) int {
	if index < 0 {
		return 0
	}
	piece := node.piece
	buf := &e.buffers[piece.BufferIndex]
	expectedLineStartIndex := piece.Start.Line + index + 1
	if expectedLineStartIndex > piece.End.Line {
		return buf.LineStarts[piece.End.Line] + piece.End.Column - buf.LineStarts[piece.Start.Line] - piece.Start.Column
	}
	return buf.LineStarts[expectedLineStartIndex] - buf.LineStarts[piece.Start.Line] - piece.Start.Column
}

// getIndexOf returns the (lineFeedIndex, columnRemainder) reached by
// walking accumulatedValue bytes into node's piece.
func (e *Engine) getIndexOf(node *treeNode, accumulatedValue int) (int, int) {
	piece := node.piece
	pos := e.positionInBuffer(node, accumulatedValue)
	lineCnt := pos.Line - piece.Start.Line

	if e.offsetInBuffer(piece.BufferIndex, piece.End)-e.offsetInBuffer(piece.BufferIndex, piece.Start) == accumulatedValue {
		realLineCnt := e.getLineFeedCnt(piece.BufferIndex, piece.Start, pos)
		if realLineCnt != lineCnt {
			return realLineCnt, 0
		}
	}

	return lineCnt, pos.Column
}

// offsetOfNode returns the accumulated document offset of node's
// start, by walking from node up to the root.
func (e *Engine) offsetOfNode(node *treeNode) int {
	if node == nil || node == sentinel {
		return 0
	}
	pos := node.sizeLeft
	for node != e.root {
		if node.parent.right == node {
			pos += node.parent.sizeLeft + node.parent.piece.Length
		}
		node = node.parent
	}
	return pos
}

// ---- lookups ----

// nodeAt finds the node covering document offset, using and
// maintaining the search cache.
func (e *Engine) nodeAt(offset int) nodePosition {
	x := e.root
	cacheVal := e.cache.get(offset)
	if cacheVal != nil {
		return nodePosition{
			node:            cacheVal.node,
			remainder:       offset - cacheVal.nodeStartOffset,
			nodeStartOffset: cacheVal.nodeStartOffset,
		}
	}

	nodeStartOffset := 0
	for x != sentinel {
		if x.sizeLeft > offset {
			x = x.left
		} else if x.sizeLeft+x.piece.Length >= offset {
			nodeStartOffset += x.sizeLeft
			ret := nodePosition{
				node:            x,
				remainder:       offset - x.sizeLeft,
				nodeStartOffset: nodeStartOffset,
			}
			e.cache.set(cacheEntry{node: x, nodeStartOffset: nodeStartOffset})
			return ret
		} else {
			offset -= x.sizeLeft + x.piece.Length
			nodeStartOffset += x.sizeLeft + x.piece.Length
			x = x.right
		}
	}

	return nodePosition{}
}

// nodeAt2 finds the node covering (lineNumber, column) (1-based
// line). See DESIGN.md Open Question (a) for the re-fetch semantics
// preserved here.
func (e *Engine) nodeAt2(lineNumber, column int) nodePosition {
	x := e.root
	nodeStartOffset := 0

	for x != sentinel {
		if x.left != sentinel && x.lfLeft >= lineNumber-1 {
			x = x.left
		} else if x.lfLeft+x.piece.LineFeedCnt > lineNumber-1 {
			prevAccumulatedValue := e.getAccumulatedValue(x, lineNumber-x.lfLeft-2)
			accumulatedValue := e.getAccumulatedValue(x, lineNumber-x.lfLeft-1)
			nodeStartOffset += x.sizeLeft

			remainder := minInt(prevAccumulatedValue+column-1, accumulatedValue)
			return nodePosition{
				node:            x,
				remainder:       remainder,
				nodeStartOffset: nodeStartOffset,
			}
		} else if x.lfLeft+x.piece.LineFeedCnt == lineNumber-1 {
			prevAccumulatedValue := e.getAccumulatedValue(x, lineNumber-x.lfLeft-2)
			if prevAccumulatedValue+column-1 <= x.piece.Length {
				nodeStartOffset += x.sizeLeft
				return nodePosition{
					node:            x,
					remainder:       prevAccumulatedValue + column - 1,
					nodeStartOffset: nodeStartOffset,
				}
			}
			column -= x.piece.Length - prevAccumulatedValue
			break
		} else {
			lineNumber -= x.lfLeft + x.piece.LineFeedCnt
			nodeStartOffset += x.sizeLeft + x.piece.Length
			x = x.right
		}
	}

	// lineNumber brought us to the boundary of x's piece with column
	// bytes still to consume; walk forward node by node, re-fetching
	// each successor's true start offset (rather than assuming
	// contiguity), exactly as the original implementation does.
	x = x.next()
	for x != sentinel {
		if x.piece.LineFeedCnt > 0 {
			lineStartOffset := e.offsetOfNode(x)
			return nodePosition{
				node:            x,
				remainder:       minInt(column-1, x.piece.Length),
				nodeStartOffset: lineStartOffset,
			}
		}
		if x.piece.Length >= column-1 {
			lineStartOffset := e.offsetOfNode(x)
			return nodePosition{
				node:            x,
				remainder:       column - 1,
				nodeStartOffset: lineStartOffset,
			}
		}
		column -= x.piece.Length
		x = x.next()
	}

	return nodePosition{}
}

// GetOffsetAt converts a 1-based (lineNumber, column) into a document
// byte offset.
func (e *Engine) GetOffsetAt(lineNumber, column int) int {
	offset := 0
	x := e.root

	for x != sentinel {
		if x.left != sentinel && x.lfLeft+1 >= lineNumber {
			x = x.left
		} else if x.lfLeft+x.piece.LineFeedCnt+1 >= lineNumber {
			offset += x.sizeLeft
			offset += e.getAccumulatedValue(x, lineNumber-x.lfLeft-2)
			return offset + column - 1
		} else {
			lineNumber -= x.lfLeft + x.piece.LineFeedCnt
			offset += x.sizeLeft + x.piece.Length
			x = x.right
		}
	}

	return offset
}

// GetPositionAt converts a document byte offset into a 1-based
// (line, column) position.
func (e *Engine) GetPositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}

	x := e.root
	lfCnt := 0
	originalOffset := offset

	for x != sentinel {
		if x.sizeLeft != 0 && x.sizeLeft >= offset {
			x = x.left
		} else if x.sizeLeft+x.piece.Length >= offset {
			index, remainder := e.getIndexOf(x, offset-x.sizeLeft)
			lfCnt += x.lfLeft + index

			if index == 0 {
				lineStartOffset := e.GetOffsetAt(lfCnt+1, 1)
				column := originalOffset - lineStartOffset
				return Position{Line: lfCnt + 1, Column: column + 1}
			}
			return Position{Line: lfCnt + 1, Column: remainder + 1}
		} else {
			offset -= x.sizeLeft + x.piece.Length
			lfCnt += x.lfLeft + x.piece.LineFeedCnt
			if x.right == sentinel {
				lineStartOffset := e.GetOffsetAt(lfCnt+1, 1)
				column := originalOffset - offset - lineStartOffset
				return Position{Line: lfCnt + 1, Column: column + 1}
			}
			x = x.right
		}
	}

	return Position{Line: 1, Column: 1}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// GetValueInRange returns the document text in the byte range
// [start, end).
func (e *Engine) GetValueInRange(start, end int) string {
	if start >= end {
		return ""
	}

	startPos := e.nodeAt(start)
	endPos := e.nodeAt(end)

	if startPos.node == endPos.node {
		buf := &e.buffers[startPos.node.piece.BufferIndex]
		startOffset := e.offsetInBuffer(startPos.node.piece.BufferIndex, startPos.node.piece.Start)
		return string(buf.Buffer[startOffset+startPos.remainder : startOffset+endPos.remainder])
	}

	var sb strings.Builder
	sb.WriteString(e.getNodeContentFrom(startPos.node, startPos.remainder, startPos.node.piece.Length))

	node := startPos.node.next()
	for node != sentinel && node != endPos.node {
		sb.WriteString(e.getPieceContent(node.piece))
		node = node.next()
	}
	sb.WriteString(e.getNodeContentFrom(endPos.node, 0, endPos.remainder))

	return sb.String()
}

// getNodeContentFrom returns node's own buffer bytes from
// fromRemainder..toRemainder within its piece.
func (e *Engine) getNodeContentFrom(node *treeNode, fromRemainder, toRemainder int) string {
	piece := node.piece
	buf := &e.buffers[piece.BufferIndex]
	startOffset := e.offsetInBuffer(piece.BufferIndex, piece.Start)
	return string(buf.Buffer[startOffset+fromRemainder : startOffset+toRemainder])
}

// getPieceContent returns the full text spanned by piece.
func (e *Engine) getPieceContent(piece Piece) string {
	buf := &e.buffers[piece.BufferIndex]
	startOffset := e.offsetInBuffer(piece.BufferIndex, piece.Start)
	endOffset := e.offsetInBuffer(piece.BufferIndex, piece.End)
	return string(buf.Buffer[startOffset:endOffset])
}

// GetLinesRawContent returns the entire document content, piece by
// piece, in order.
func (e *Engine) GetLinesRawContent() string {
	var sb strings.Builder
	e.iterate(e.root, func(node *treeNode) bool {
		sb.WriteString(e.getPieceContent(node.piece))
		return true
	})
	return sb.String()
}

// GetLinesContent splits the full document content on any line
// terminator.
func (e *Engine) GetLinesContent() []string {
	return splitLines(e.GetLinesRawContent())
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				lines = append(lines, s[start:i])
				i++
				start = i + 1
			} else {
				lines = append(lines, s[start:i])
				start = i + 1
			}
		case '\n':
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

// iterate performs an in-order traversal, invoking fn on each node;
// fn returning false stops the traversal early.
func (e *Engine) iterate(node *treeNode, fn func(*treeNode) bool) bool {
	if node == sentinel {
		return true
	}
	if !e.iterate(node.left, fn) {
		return false
	}
	if !fn(node) {
		return false
	}
	return e.iterate(node.right, fn)
}

// GetLineRawContent returns the raw (terminator-included) content of
// a 1-based line number.
func (e *Engine) GetLineRawContent(lineNumber int) string {
	x := e.root
	var sb strings.Builder

	cacheEnt := e.cache.get2(lineNumber)
	if cacheEnt != nil {
		x = cacheEnt.node
		prevAccumulated := e.getAccumulatedValue(x, lineNumber-cacheEnt.nodeStartLineNumber-1)
		buf := &e.buffers[x.piece.BufferIndex]
		startOffset := e.offsetInBuffer(x.piece.BufferIndex, x.piece.Start)
		if cacheEnt.nodeStartLineNumber+x.piece.LineFeedCnt == lineNumber {
			sb.WriteString(string(buf.Buffer[startOffset+prevAccumulated : startOffset+x.piece.Length]))
		} else {
			accumulated := e.getAccumulatedValue(x, lineNumber-cacheEnt.nodeStartLineNumber)
			return string(buf.Buffer[startOffset+prevAccumulated : startOffset+accumulated])
		}
	} else {
		nodeStartOffset := 0
		nodeStartLineNumber := 1
		found := false

		for x != sentinel {
			if x.left != sentinel && x.lfLeft >= lineNumber-1 {
				x = x.left
			} else if x.lfLeft+x.piece.LineFeedCnt > lineNumber-1 {
				prevAccumulated := e.getAccumulatedValue(x, lineNumber-x.lfLeft-2)
				accumulated := e.getAccumulatedValue(x, lineNumber-x.lfLeft-1)
				buf := &e.buffers[x.piece.BufferIndex]
				startOffset := e.offsetInBuffer(x.piece.BufferIndex, x.piece.Start)
				e.cache.set(cacheEntry{node: x, nodeStartOffset: nodeStartOffset + x.sizeLeft, nodeStartLineNumber: nodeStartLineNumber + x.lfLeft})
				return string(buf.Buffer[startOffset+prevAccumulated : startOffset+accumulated])
			} else if x.lfLeft+x.piece.LineFeedCnt == lineNumber-1 {
				prevAccumulated := e.getAccumulatedValue(x, lineNumber-x.lfLeft-2)
				buf := &e.buffers[x.piece.BufferIndex]
				startOffset := e.offsetInBuffer(x.piece.BufferIndex, x.piece.Start)
				sb.WriteString(string(buf.Buffer[startOffset+prevAccumulated : startOffset+x.piece.Length]))
				e.cache.set(cacheEntry{node: x, nodeStartOffset: nodeStartOffset + x.sizeLeft, nodeStartLineNumber: nodeStartLineNumber + x.lfLeft})
				found = true
				break
			} else {
				lineNumber -= x.lfLeft + x.piece.LineFeedCnt
				nodeStartOffset += x.sizeLeft + x.piece.Length
				nodeStartLineNumber += x.lfLeft + x.piece.LineFeedCnt
				x = x.right
			}
		}
		if !found {
			return sb.String()
		}
	}

	x = x.next()
	for x != sentinel {
		content := e.getPieceContent(x.piece)
		if x.piece.LineFeedCnt > 0 {
			sb.WriteString(content[:e.getAccumulatedValue(x, 0)])
			break
		}
		sb.WriteString(content)
		x = x.next()
	}

	return sb.String()
}

func indexOfLineBreak(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			return i
		}
	}
	return len(s)
}

// GetLineContent returns a 1-based line's content with its trailing
// line terminator stripped.
func (e *Engine) GetLineContent(lineNumber int) string {
	if e.lastVisitedLine.lineNumber == lineNumber {
		return e.lastVisitedLine.value
	}
	e.lastVisitedLine.lineNumber = lineNumber

	if lineNumber == e.lineCnt {
		e.lastVisitedLine.value = e.GetLineRawContent(lineNumber)
	} else if e.eolNormalized {
		raw := e.GetLineRawContent(lineNumber)
		if len(raw) >= e.eolLength {
			e.lastVisitedLine.value = raw[:len(raw)-e.eolLength]
		} else {
			e.lastVisitedLine.value = raw
		}
	} else {
		raw := e.GetLineRawContent(lineNumber)
		e.lastVisitedLine.value = trimTrailingEOL(raw)
	}

	return e.lastVisitedLine.value
}

func trimTrailingEOL(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	if strings.HasSuffix(s, "\n") || strings.HasSuffix(s, "\r") {
		return s[:len(s)-1]
	}
	return s
}

// GetLineLength returns the byte length of a 1-based line, excluding
// its line terminator.
func (e *Engine) GetLineLength(lineNumber int) int {
	if lineNumber < 1 || lineNumber > e.lineCnt {
		return 0
	}
	if lineNumber == e.lineCnt {
		lastOffset := e.GetOffsetAt(lineNumber, 1)
		return e.length - lastOffset
	}
	return e.GetOffsetAt(lineNumber+1, 1) - e.GetOffsetAt(lineNumber, 1) - e.eolLength
}

// GetLineCharCode returns the byte at the given 0-based index within
// a 1-based line.
func (e *Engine) GetLineCharCode(lineNumber, index int) byte {
	nodePos := e.nodeAt2(lineNumber, index+1)
	if nodePos.remainder == nodePos.node.piece.Length {
		next := nodePos.node.next()
		if next == sentinel {
			return 0
		}
		buf := &e.buffers[next.piece.BufferIndex]
		startOffset := e.offsetInBuffer(next.piece.BufferIndex, next.piece.Start)
		return buf.Buffer[startOffset]
	}
	buf := &e.buffers[nodePos.node.piece.BufferIndex]
	startOffset := e.offsetInBuffer(nodePos.node.piece.BufferIndex, nodePos.node.piece.Start)
	return buf.Buffer[startOffset+nodePos.remainder]
}

// Equal reports whether e and other currently hold identical document
// content.
func (e *Engine) Equal(other *Engine) bool {
	if e.GetLength() != other.GetLength() {
		return false
	}
	if e.GetLineCount() != other.GetLineCount() {
		return false
	}
	return e.GetLinesRawContent() == other.GetLinesRawContent()
}
