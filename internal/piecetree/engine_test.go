package piecetree

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestEngineInsertAtStart(t *testing.T) {
	e := buildEngine(t, []string{"world"}, DefaultEOLLF, false)
	e.Insert(0, "hello ")

	if got := e.GetLinesRawContent(); got != "hello world" {
		t.Errorf("got %q", got)
	}
	if e.GetLength() != 11 {
		t.Errorf("length = %d, want 11", e.GetLength())
	}
}

func TestEngineInsertAtEnd(t *testing.T) {
	e := buildEngine(t, []string{"hello"}, DefaultEOLLF, false)
	e.Insert(e.GetLength(), " world")

	if got := e.GetLinesRawContent(); got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestEngineInsertInMiddle(t *testing.T) {
	e := buildEngine(t, []string{"helloworld"}, DefaultEOLLF, false)
	e.Insert(5, " ")

	if got := e.GetLinesRawContent(); got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestEngineInsertWithLFUpdatesLineCount(t *testing.T) {
	e := buildEngine(t, []string{"abcdef"}, DefaultEOLLF, false)
	e.Insert(3, "\n")

	if e.GetLineCount() != 2 {
		t.Errorf("line count = %d, want 2", e.GetLineCount())
	}
	if e.GetLineContent(1) != "abc" || e.GetLineContent(2) != "def" {
		t.Errorf("line 1=%q line 2=%q", e.GetLineContent(1), e.GetLineContent(2))
	}
}

func TestEngineInsertClampsOffsetBeyondLength(t *testing.T) {
	e := buildEngine(t, []string{"abc"}, DefaultEOLLF, false)
	e.Insert(1000, "X")

	if got := e.GetLinesRawContent(); got != "abcX" {
		t.Errorf("got %q, want insert clamped to end", got)
	}
}

func TestEngineInsertEmptyIsNoop(t *testing.T) {
	e := buildEngine(t, []string{"abc"}, DefaultEOLLF, false)
	e.Insert(1, "")

	if got := e.GetLinesRawContent(); got != "abc" {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestEngineDeleteAcrossLinesClampsCount(t *testing.T) {
	e := buildEngine(t, []string{"one\ntwo\nthree"}, DefaultEOLLF, false)
	// Delete far more than remains; should clamp to end of document.
	e.Delete(4, 1000)

	if got := e.GetLinesRawContent(); got != "one\n" {
		t.Errorf("got %q, want clamped delete to consume rest of doc", got)
	}
}

func TestEngineDeleteWithinSinglePiece(t *testing.T) {
	e := buildEngine(t, []string{"hello world"}, DefaultEOLLF, false)
	e.Delete(5, 6)

	if got := e.GetLinesRawContent(); got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestEngineDeleteNegativeOffsetClampsToZero(t *testing.T) {
	e := buildEngine(t, []string{"abcdef"}, DefaultEOLLF, false)
	e.Delete(-5, 3)

	if got := e.GetLinesRawContent(); got != "def" {
		t.Errorf("got %q", got)
	}
}

func TestEngineDeleteZeroCountIsNoop(t *testing.T) {
	e := buildEngine(t, []string{"abcdef"}, DefaultEOLLF, false)
	e.Delete(2, 0)

	if got := e.GetLinesRawContent(); got != "abcdef" {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestEngineCRLFSplitAndRejoinAcrossInsert(t *testing.T) {
	// Insert "\n" right in between an existing "\r" and the following
	// character so the CRLF repair path must bridge it back together.
	e := buildEngine(t, []string{"a\rb"}, DefaultEOLLF, false)
	e.Insert(2, "\n")

	if got := e.GetLinesRawContent(); got != "a\r\nb" {
		t.Errorf("got %q, want the inserted LF joined with the existing CR", got)
	}
	if e.GetLineCount() != 2 {
		t.Errorf("line count = %d, want 2 (one CRLF terminator, not two)", e.GetLineCount())
	}
}

func TestEngineCRLFSplitByDeleteOfLF(t *testing.T) {
	e := buildEngine(t, []string{"a\r\nb"}, DefaultEOLLF, false)
	e.Delete(2, 1) // delete the \n, leaving a lone \r

	if got := e.GetLinesRawContent(); got != "a\rb" {
		t.Errorf("got %q", got)
	}
	if e.GetLineCount() != 2 {
		t.Errorf("line count = %d, want 2 (lone CR still terminates a line)", e.GetLineCount())
	}
}

func TestEngineCRLFRejoinAfterInteriorDelete(t *testing.T) {
	// "a\rXYZ\nb" is one piece. Deleting the interior "XYZ" leaves a
	// lone '\r' directly abutting a lone '\n' across the shrinkNode
	// split, which must be repaired back into a single CRLF piece.
	e := buildEngine(t, []string{"a\rXYZ\nb"}, DefaultEOLLF, false)
	e.Delete(2, 3)

	if got := e.GetLinesRawContent(); got != "a\r\nb" {
		t.Errorf("got %q, want %q", got, "a\r\nb")
	}
	if e.GetLineCount() != 2 {
		t.Errorf("line count = %d, want 2 (one CRLF terminator, not two)", e.GetLineCount())
	}
}

func TestEngineCRLFFoldOnInsertContentToNodeLeft(t *testing.T) {
	// The target node already starts with '\n'; inserting a value
	// ending in '\r' immediately before it must fold that '\n' into
	// the newly inserted content rather than leaving the CR and LF as
	// two separately-counted line terminators.
	e := buildEngine(t, []string{"\nabc"}, DefaultEOLLF, false)
	e.Insert(0, "x\r")

	if got := e.GetLinesRawContent(); got != "x\r\nabc" {
		t.Errorf("got %q, want %q", got, "x\r\nabc")
	}
	if e.GetLineCount() != 2 {
		t.Errorf("line count = %d, want 2 (one CRLF terminator, not two)", e.GetLineCount())
	}
}

func TestEngineGetOffsetAtAndGetPositionAtRoundTrip(t *testing.T) {
	e := buildEngine(t, []string{"abc\ndefgh\nij"}, DefaultEOLLF, false)

	offset := e.GetOffsetAt(2, 3) // line 2 ("defgh"), column 3 -> byte offset of 'f'
	pos := e.GetPositionAt(offset)

	if pos.Line != 2 || pos.Column != 3 {
		t.Errorf("round trip got %+v, want {Line:2 Column:3}", pos)
	}
}

func TestEngineGetOffsetAtLineStarts(t *testing.T) {
	e := buildEngine(t, []string{"abc\ndefgh\nij"}, DefaultEOLLF, false)

	if got := e.GetOffsetAt(1, 1); got != 0 {
		t.Errorf("line 1 col 1 offset = %d, want 0", got)
	}
	if got := e.GetOffsetAt(2, 1); got != 4 {
		t.Errorf("line 2 col 1 offset = %d, want 4", got)
	}
	if got := e.GetOffsetAt(3, 1); got != 10 {
		t.Errorf("line 3 col 1 offset = %d, want 10", got)
	}
}

func TestEngineGetValueInRange(t *testing.T) {
	e := buildEngine(t, []string{"hello world"}, DefaultEOLLF, false)
	if got := e.GetValueInRange(6, 11); got != "world" {
		t.Errorf("got %q, want %q", got, "world")
	}
}

func TestEngineGetLineContentStripsTerminator(t *testing.T) {
	e := buildEngine(t, []string{"abc\ndef\n"}, DefaultEOLLF, false)
	if got := e.GetLineContent(1); got != "abc" {
		t.Errorf("got %q, want %q", got, "abc")
	}
	if got := e.GetLineContent(2); got != "def" {
		t.Errorf("got %q, want %q", got, "def")
	}
}

func TestEngineGetLineLength(t *testing.T) {
	e := buildEngine(t, []string{"abc\ndefgh\n"}, DefaultEOLLF, false)
	if got := e.GetLineLength(1); got != 3 {
		t.Errorf("line 1 length = %d, want 3", got)
	}
	if got := e.GetLineLength(2); got != 5 {
		t.Errorf("line 2 length = %d, want 5", got)
	}
}

func TestEngineEqualComparesContent(t *testing.T) {
	a := buildEngine(t, []string{"hello world"}, DefaultEOLLF, false)
	b := buildEngine(t, []string{"hello ", "world"}, DefaultEOLLF, false)

	if !a.Equal(b) {
		t.Error("expected engines with identical content from different chunk layouts to be equal")
	}

	b.Insert(0, "X")
	if a.Equal(b) {
		t.Error("expected engines with different content to be unequal")
	}
}

func TestEngineManyInsertsAndDeletesStayConsistent(t *testing.T) {
	e := buildEngine(t, []string{""}, DefaultEOLLF, false)
	var want strings.Builder

	inserts := []string{"hello", " ", "world", "\n", "second line", "\r\n", "third"}
	offset := 0
	for _, s := range inserts {
		e.Insert(offset, s)
		want.WriteString(s)
		offset += len(s)
	}

	if got := e.GetLinesRawContent(); got != want.String() {
		t.Fatalf("got %q, want %q", got, want.String())
	}

	e.Delete(0, 6)
	remaining := want.String()[6:]
	if got := e.GetLinesRawContent(); got != remaining {
		t.Errorf("after delete got %q, want %q", got, remaining)
	}
}

func TestEngineDebugJSONReportsStructure(t *testing.T) {
	e := buildEngine(t, []string{"abc\ndef"}, DefaultEOLLF, false)
	out := e.DebugJSON()

	if got := gjson.Get(out, "length").Int(); got != 7 {
		t.Errorf("length = %d, want 7", got)
	}
	if got := gjson.Get(out, "lineCount").Int(); got != 2 {
		t.Errorf("lineCount = %d, want 2", got)
	}
	if got := gjson.Get(out, "eol").String(); got != "\n" {
		t.Errorf("eol = %q, want \\n", got)
	}
	pieces := gjson.Get(out, "pieces").Array()
	if len(pieces) == 0 {
		t.Error("expected at least one piece in the diagnostics dump")
	}
}

func TestSimpleDemoWalkthrough(t *testing.T) {
	// Mirrors the original project's end-to-end builder/insert/delete
	// walkthrough: a handful of chunked appends, then a sequence of
	// edits, checking the document stays well-formed throughout.
	e := buildEngine(t, []string{"abc\n", "def", "+KML", "\n123"}, DefaultEOLLF, false)
	if got := e.GetLinesRawContent(); got != "abc\ndef+KML\n123" {
		t.Fatalf("initial build got %q", got)
	}

	e.Insert(0, "124")
	e.Insert(2, "keb")
	e.Insert(e.GetLength(), "keb")
	e.Insert(4, "\nmul lines\n")

	e.Delete(0, 2)
	e.Delete(e.GetLength()-2, 2)
	e.Delete(5, 2)
	e.Delete(8, 6)
	e.Delete(4, 34)

	// The exact surviving text depends on every preceding edit; the
	// important invariant is that the engine never panics and stays
	// internally consistent (length matches content, round-trip
	// position conversion holds).
	content := e.GetLinesRawContent()
	if e.GetLength() != len(content) {
		t.Errorf("GetLength() = %d, but raw content is %d bytes", e.GetLength(), len(content))
	}
	if content != "" {
		pos := e.GetPositionAt(e.GetLength())
		offset := e.GetOffsetAt(pos.Line, pos.Column)
		if offset != e.GetLength() {
			t.Errorf("end-of-document round trip: offset=%d, want %d", offset, e.GetLength())
		}
	}
}
