// Package cpu implements the LC-3 machine core.
//
// The machine consists of a flat 64Ki-word memory with two memory-mapped
// keyboard registers, eight 16-bit general-purpose registers, a program
// counter, a three-way condition flag, and a fetch/decode/execute engine
// over the architecture's sixteen-entry opcode table. One opcode (TRAP)
// dispatches into a fixed table of six character I/O service routines.
//
// The package also provides the big-endian image loader and a single-pass
// assembler for the LC-3 assembly language, supporting labels, equates,
// and compile-time expression evaluation.
package cpu
