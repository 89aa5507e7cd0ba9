package piecetree

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEOL is the caller's end-of-line preference, used only when a
// document contains no line terminators to infer one from.
type DefaultEOL int

const (
	// DefaultEOLLF selects "\n".
	DefaultEOLLF DefaultEOL = iota + 1
	// DefaultEOLCRLF selects "\r\n".
	DefaultEOLCRLF
)

var utf8BOMBytes = []byte{0xEF, 0xBB, 0xBF}

// startsWithUTF8BOM reports whether b begins with the UTF-8 byte
// order mark.
func startsWithUTF8BOM(b []byte) bool {
	return bytes.HasPrefix(b, utf8BOMBytes)
}

// stripUTF8BOM removes a leading UTF-8 BOM from b, if present,
// returning the stripped bytes and whether one was found. The strip
// itself goes through x/text's BOM-aware UTF-8 decoder rather than a
// hand-rolled slice operation.
func stripUTF8BOM(b []byte) ([]byte, bool) {
	if !startsWithUTF8BOM(b) {
		return b, false
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), b)
	if err != nil {
		return bytes.TrimPrefix(b, utf8BOMBytes), true
	}
	return out, true
}

// Builder accumulates streamed text chunks and, on Finish, produces a
// Factory that can construct one or more Engines from them.
//
// Chunks may split a "\r\n" pair across a call boundary; Builder
// defers the trailing '\r' of one chunk until the next AcceptChunk
// (or Finish) call so the pair is never miscounted as two separate
// line terminators.
type Builder struct {
	chunks []StringBuffer
	bom    string

	hasPreviousChar bool
	previousChar    byte

	cr, lf, crlf int
}

// AcceptChunk adds chunk to the builder. Empty chunks are ignored.
func (b *Builder) AcceptChunk(chunk string) {
	if chunk == "" {
		return
	}

	data := []byte(chunk)
	if len(b.chunks) == 0 {
		if stripped, found := stripUTF8BOM(data); found {
			b.bom = string(utf8BOMBytes)
			data = stripped
		}
	}

	b.acceptChunk1(data, false)
}

func (b *Builder) acceptChunk1(chunk []byte, allowEmpty bool) {
	if !allowEmpty && len(chunk) == 0 {
		return
	}

	if b.hasPreviousChar {
		combined := append([]byte{b.previousChar}, chunk...)
		b.hasPreviousChar = false
		b.acceptChunk2(combined)
		return
	}

	b.acceptChunk2(chunk)
}

func (b *Builder) acceptChunk2(chunk []byte) {
	// Defer a trailing lone '\r' to the next chunk so a split "\r\n"
	// isn't miscounted as two separate terminators.
	if len(chunk) > 0 && chunk[len(chunk)-1] == '\r' {
		b.hasPreviousChar = true
		b.previousChar = '\r'
		chunk = chunk[:len(chunk)-1]
	}

	ls := Analyze(chunk)
	b.chunks = append(b.chunks, StringBuffer{Buffer: chunk, LineStarts: ls.Offsets})
	b.cr += ls.CR
	b.lf += ls.LF
	b.crlf += ls.CRLF
}

// Finish finalizes the builder and returns a Factory. normalizeEOL
// controls whether Factory.Create rewrites every chunk's line
// terminators to the chosen EOL style before constructing the Engine.
func (b *Builder) Finish(normalizeEOL bool) *Factory {
	if len(b.chunks) == 0 {
		b.acceptChunk1(nil, true)
	}

	if b.hasPreviousChar {
		b.hasPreviousChar = false
		last := &b.chunks[len(b.chunks)-1]
		last.Buffer = append(last.Buffer, b.previousChar)
		last.LineStarts = AnalyzeFast(last.Buffer)
		if b.previousChar == '\r' {
			b.cr++
		}
	}

	return &Factory{
		chunks:       b.chunks,
		bom:          b.bom,
		cr:           b.cr,
		lf:           b.lf,
		crlf:         b.crlf,
		normalizeEOL: normalizeEOL,
	}
}

// Factory builds Engines from a fixed set of chunks, deciding the
// document's EOL style once from their content.
type Factory struct {
	chunks       []StringBuffer
	bom          string
	cr, lf, crlf int
	normalizeEOL bool

	// averageBufferSize and cacheCapacity are 0 until overridden via
	// WithAverageBufferSize/WithCacheCapacity, in which case Create
	// falls back to the package defaults.
	averageBufferSize int
	cacheCapacity     int
}

// WithAverageBufferSize overrides the engine's change-buffer/original-
// buffer split threshold (see AverageBufferSize). Returns f for
// chaining.
func (f *Factory) WithAverageBufferSize(n int) *Factory {
	f.averageBufferSize = n
	return f
}

// WithCacheCapacity overrides the engine's search cache capacity (see
// DefaultCacheCapacity). Returns f for chaining.
func (f *Factory) WithCacheCapacity(n int) *Factory {
	f.cacheCapacity = n
	return f
}

// getEOL picks "\r\n" when more than half of the document's line
// terminators are CR-led, "\n" otherwise, falling back to defaultEOL
// when the document has no line terminators at all. The ">
// totalEOLCount/2" threshold (integer division) is reproduced
// literally; see DESIGN.md Open Question (b).
func (f *Factory) getEOL(defaultEOL DefaultEOL) string {
	totalEOLCount := f.cr + f.lf + f.crlf
	totalCRCount := f.cr + f.crlf

	if totalEOLCount == 0 {
		if defaultEOL == DefaultEOLLF {
			return "\n"
		}
		return "\r\n"
	}

	if totalCRCount > totalEOLCount/2 {
		return "\r\n"
	}
	return "\n"
}

// Create builds a new Engine, normalizing line endings across all
// chunks first if the Builder was finished with normalizeEOL=true and
// the chosen EOL doesn't already match every terminator in the
// document.
func (f *Factory) Create(defaultEOL DefaultEOL) *Engine {
	eol := f.getEOL(defaultEOL)
	chunks := f.chunks

	needsNormalize := f.normalizeEOL &&
		((eol == "\r\n" && (f.cr > 0 || f.lf > 0)) ||
			(eol == "\n" && (f.cr > 0 || f.crlf > 0)))

	if needsNormalize {
		normalized := make([]StringBuffer, len(chunks))
		for i, c := range chunks {
			rewritten := rewriteEOL(string(c.Buffer), eol)
			normalized[i] = StringBuffer{
				Buffer:     []byte(rewritten),
				LineStarts: AnalyzeFast([]byte(rewritten)),
			}
		}
		chunks = normalized
	}

	return newEngine(chunks, eol, f.normalizeEOL, f.averageBufferSize, f.cacheCapacity)
}

// FirstLineText returns up to lengthLimit bytes of the first chunk,
// truncated at the first line terminator if one appears earlier.
func (f *Factory) FirstLineText(lengthLimit int) string {
	if len(f.chunks) == 0 || len(f.chunks[0].Buffer) == 0 {
		return ""
	}

	buf := f.chunks[0].Buffer
	if lengthLimit < len(buf) {
		buf = buf[:lengthLimit]
	}

	for i, c := range buf {
		if c == '\r' || c == '\n' {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// rewriteEOL rewrites every "\r\n", "\r", or "\n" terminator in s to
// eol. This is the "regex-based EOL rewrite" spec.md describes as
// scan-and-replace semantics; no regex engine is required since the
// three terminator forms are fixed literals.
func rewriteEOL(s string, eol string) string {
	var out bytes.Buffer
	out.Grow(len(s))

	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '\r':
			out.WriteString(eol)
			if i+1 < len(s) && s[i+1] == '\n' {
				i += 2
			} else {
				i++
			}
		case '\n':
			out.WriteString(eol)
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}
