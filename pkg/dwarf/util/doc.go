// Package util implements the bounds-checked byte cursor every DWARF decoder
// in this module reads through, and the error kinds those decoders report.
package util
