// Package dex implements the in-memory editable bytecode document.
//
// This package contains:
//   - Document: the session aggregate owning loaded images
//   - Overlay: copy-on-write class replacements and deletions
//   - History: bounded linear undo/redo over overlay edits
//   - CheckpointStore: named overlay snapshots
//   - Search over the resolved instruction stream
//   - Archive export preserving untouched members byte-for-byte
//
// Decoding, assembly and decompilation are delegated to a Codec; the
// package never inspects instruction internals beyond their textual
// rendering and opcode category.
package dex
