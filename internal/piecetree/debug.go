package piecetree

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// DebugJSON returns a structural dump of the engine suitable for
// diagnostics: overall length and line count, the search cache's
// occupancy, and the piece sequence in order. It is built with
// tidwall/sjson rather than encoding/json because the dump is
// assembled incrementally, one path-set per piece, without ever
// needing a matching Go struct.
func (e *Engine) DebugJSON() string {
	out := "{}"
	var err error

	out, err = sjson.Set(out, "length", e.length)
	if err != nil {
		return out
	}
	out, err = sjson.Set(out, "lineCount", e.lineCnt)
	if err != nil {
		return out
	}
	out, err = sjson.Set(out, "eol", e.eol)
	if err != nil {
		return out
	}
	out, err = sjson.Set(out, "cacheSize", len(e.cache.entries))
	if err != nil {
		return out
	}

	index := 0
	e.iterate(e.root, func(n *treeNode) bool {
		prefix := fmt.Sprintf("pieces.%d", index)
		out, err = sjson.Set(out, prefix+".bufferIndex", n.piece.BufferIndex)
		if err != nil {
			return false
		}
		out, err = sjson.Set(out, prefix+".length", n.piece.Length)
		if err != nil {
			return false
		}
		out, err = sjson.Set(out, prefix+".lineFeedCnt", n.piece.LineFeedCnt)
		if err != nil {
			return false
		}
		index++
		return true
	})

	return out
}
