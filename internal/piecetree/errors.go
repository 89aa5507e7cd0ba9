package piecetree

import "errors"

// Errors returned by engine operations. Per spec, most contract
// violations (out-of-range offsets/lines) are clamped silently rather
// than rejected; these sentinels exist for the handful of operations
// where the caller benefits from observing that clamping happened.
var (
	ErrOffsetOutOfRange = errors.New("piecetree: offset out of range")
	ErrLineOutOfRange   = errors.New("piecetree: line out of range")
)

// CheckOffset reports ErrOffsetOutOfRange if offset falls outside
// [0, GetLength()]. Insert/Delete/GetPositionAt never use this
// themselves — they clamp silently per spec — but a caller that wants
// to distinguish "clamped" from "already in range" can call it first.
func (e *Engine) CheckOffset(offset int) error {
	if offset < 0 || offset > e.length {
		return ErrOffsetOutOfRange
	}
	return nil
}

// CheckLineNumber reports ErrLineOutOfRange if lineNumber falls
// outside [1, GetLineCount()]. GetLineContent/GetLineLength never use
// this themselves — they return "" / 0 for an out-of-range line per
// spec — but a caller that wants to distinguish the two cases can
// call it first.
func (e *Engine) CheckLineNumber(lineNumber int) error {
	if lineNumber < 1 || lineNumber > e.lineCnt {
		return ErrLineOutOfRange
	}
	return nil
}
