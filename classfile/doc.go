// Package classfile implements the concrete tree model that patches are
// matched against and rewritten into.
//
// This package contains:
//   - Class, field and method nodes with JVM access flags
//   - Opcoded instruction variants, labels and the opcode metadata table
//   - Field and method descriptor parsing
//   - The binary image codec (ReadImage / WriteImage) and content digests
//   - A disassembler for diagnostics
package classfile
