// Package piecetree implements a mutable, in-place piece-tree text
// buffer: a document is represented as an augmented red-black tree of
// Piece values, each a view into one of several append-only backing
// buffers, rather than as a copy of the document text itself.
//
// The design favors large-document edit throughput: inserting or
// deleting a span of text only ever allocates new tree nodes and
// small Piece records, never copies the surrounding content. A small
// mutable "change buffer" absorbs all new text from inserts; any
// buffer supplied at construction time (via Builder) is treated as
// immutable "original" content.
//
// Engine is not safe for concurrent use. Callers that need
// thread-safety should serialize access externally (see
// internal/engine/buffer for an example wrapper).
package piecetree
