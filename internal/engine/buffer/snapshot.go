package buffer

import (
	"unicode/utf8"

	"github.com/kebaren/lemon/internal/piecetree"
)

// Snapshot provides a read-only view of a buffer at a specific point in time.
// It is safe for concurrent access and will not change even if the original
// buffer is modified, because it owns an independent piece-tree engine (see
// Buffer.Snapshot).
type Snapshot struct {
	engine     *piecetree.Engine
	revisionID RevisionID
	lineEnding LineEnding
	tabWidth   int
}

// Text returns the full snapshot content as a string.
func (s *Snapshot) Text() string {
	return s.engine.GetLinesRawContent()
}

// TextRange returns text in the given byte range.
func (s *Snapshot) TextRange(start, end ByteOffset) string {
	return s.engine.GetValueInRange(int(start), int(end))
}

// Len returns the total byte length of the snapshot.
func (s *Snapshot) Len() ByteOffset {
	return ByteOffset(s.engine.GetLength())
}

// LineCount returns the number of lines.
func (s *Snapshot) LineCount() uint32 {
	return uint32(s.engine.GetLineCount())
}

// LineText returns the text of a specific line (without newline).
func (s *Snapshot) LineText(line uint32) string {
	return s.engine.GetLineContent(int(line) + 1)
}

// LineLen returns the length of a specific line in bytes (without newline).
func (s *Snapshot) LineLen(line uint32) int {
	return s.engine.GetLineLength(int(line) + 1)
}

// ByteAt returns the byte at the given offset.
func (s *Snapshot) ByteAt(offset ByteOffset) (byte, bool) {
	if offset < 0 || offset >= ByteOffset(s.engine.GetLength()) {
		return 0, false
	}
	str := s.engine.GetValueInRange(int(offset), int(offset)+1)
	if str == "" {
		return 0, false
	}
	return str[0], true
}

// RuneAt returns the rune at the given byte offset.
// Returns utf8.RuneError and size 0 if offset is out of range.
func (s *Snapshot) RuneAt(offset ByteOffset) (rune, int) {
	length := ByteOffset(s.engine.GetLength())
	if offset < 0 || offset >= length {
		return utf8.RuneError, 0
	}

	end := offset + 4
	if end > length {
		end = length
	}

	str := s.engine.GetValueInRange(int(offset), int(end))
	return utf8.DecodeRuneInString(str)
}

// OffsetToPoint converts a byte offset to line/column.
func (s *Snapshot) OffsetToPoint(offset ByteOffset) Point {
	return positionToPoint(s.engine.GetPositionAt(int(offset)))
}

// PointToOffset converts line/column to byte offset.
func (s *Snapshot) PointToOffset(point Point) ByteOffset {
	pos := pointToPosition(point)
	return ByteOffset(s.engine.GetOffsetAt(pos.Line, pos.Column))
}

// OffsetToPointUTF16 converts a byte offset to UTF-16 line/column.
func (s *Snapshot) OffsetToPointUTF16(offset ByteOffset) PointUTF16 {
	point := positionToPoint(s.engine.GetPositionAt(int(offset)))
	lineStart := s.engine.GetOffsetAt(int(point.Line)+1, 1)
	lineText := s.engine.GetValueInRange(lineStart, int(offset))

	utf16Col := utf16ColumnFromString(lineText)

	return PointUTF16{Line: point.Line, Column: utf16Col}
}

// PointUTF16ToOffset converts UTF-16 line/column to byte offset.
func (s *Snapshot) PointUTF16ToOffset(point PointUTF16) ByteOffset {
	lineNumber := int(point.Line) + 1
	lineStart := s.engine.GetOffsetAt(lineNumber, 1)
	lineLen := s.engine.GetLineLength(lineNumber)
	lineText := s.engine.GetValueInRange(lineStart, lineStart+lineLen)

	byteCol := byteOffsetFromUTF16Column(lineText, point.Column)

	return ByteOffset(lineStart) + ByteOffset(byteCol)
}

// LineStartOffset returns the byte offset of the start of a line.
func (s *Snapshot) LineStartOffset(line uint32) ByteOffset {
	return ByteOffset(s.engine.GetOffsetAt(int(line)+1, 1))
}

// LineEndOffset returns the byte offset of the end of a line (before newline).
func (s *Snapshot) LineEndOffset(line uint32) ByteOffset {
	start := s.engine.GetOffsetAt(int(line)+1, 1)
	return ByteOffset(start + s.engine.GetLineLength(int(line)+1))
}

// RevisionID returns the revision ID of this snapshot.
func (s *Snapshot) RevisionID() RevisionID {
	return s.revisionID
}

// IsEmpty returns true if the snapshot is empty.
func (s *Snapshot) IsEmpty() bool {
	return s.engine.GetLength() == 0
}

// LineEnding returns the snapshot's line ending style.
func (s *Snapshot) LineEnding() LineEnding {
	return s.lineEnding
}

// TabWidth returns the snapshot's tab width.
func (s *Snapshot) TabWidth() int {
	return s.tabWidth
}

// ChunkIterator streams a snapshot's content piece by piece without
// materializing the whole document at once.
type ChunkIterator struct {
	inner *piecetree.Snapshot
}

// Next returns the next chunk, or ("", false) once exhausted.
func (c *ChunkIterator) Next() (string, bool) {
	return c.inner.Read()
}

// Chunks returns an iterator over the snapshot's content, one piece at a time.
func (s *Snapshot) Chunks() *ChunkIterator {
	return &ChunkIterator{inner: s.engine.CreateSnapshot("")}
}

// LineIterator walks a snapshot's lines in order.
type LineIterator struct {
	engine *piecetree.Engine
	next   int
	total  int
}

// Next returns the next line's text (without its terminator), or ("",
// false) once every line has been returned.
func (it *LineIterator) Next() (string, bool) {
	if it.next > it.total {
		return "", false
	}
	line := it.engine.GetLineContent(it.next)
	it.next++
	return line, true
}

// Lines returns an iterator over all lines in the snapshot.
func (s *Snapshot) Lines() *LineIterator {
	return &LineIterator{engine: s.engine, next: 1, total: s.engine.GetLineCount()}
}

// RuneIterator walks a snapshot's content one rune at a time.
type RuneIterator struct {
	content string
	pos     int
}

// Next returns the next rune and its byte offset, or (0, 0, false) once
// exhausted.
func (it *RuneIterator) Next() (rune, ByteOffset, bool) {
	if it.pos >= len(it.content) {
		return 0, 0, false
	}
	r, size := utf8.DecodeRuneInString(it.content[it.pos:])
	offset := ByteOffset(it.pos)
	it.pos += size
	return r, offset, true
}

// Runes returns an iterator over all runes in the snapshot.
func (s *Snapshot) Runes() *RuneIterator {
	return &RuneIterator{content: s.engine.GetLinesRawContent()}
}

// ByteIterator walks a snapshot's content one byte at a time.
type ByteIterator struct {
	content string
	pos     int
}

// Next returns the next byte, or (0, false) once exhausted.
func (it *ByteIterator) Next() (byte, bool) {
	if it.pos >= len(it.content) {
		return 0, false
	}
	b := it.content[it.pos]
	it.pos++
	return b, true
}

// Bytes returns an iterator over all bytes in the snapshot.
func (s *Snapshot) Bytes() *ByteIterator {
	return &ByteIterator{content: s.engine.GetLinesRawContent()}
}
