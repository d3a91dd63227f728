// Package results finds and presents the CSV files the crawler writes. It scans
// the result tree, parses one file fully into memory, narrows wide tables to the
// columns a person usually wants to read and extracts the post URL of a row.
//
// Everything except Explorer is pure and safe for concurrent use.
package results
