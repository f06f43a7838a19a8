// Package godwarf defines the DWARF constants (tags, attributes, forms,
// line program opcodes) shared by the decoders, and helpers to obtain raw
// debug sections from an object file.
package godwarf
