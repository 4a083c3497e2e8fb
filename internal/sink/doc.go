// Package sink formats annotated MACS records and writes them out.
//
// Destinations:
// - no format and no file: console lines on stdout
// - format and file: lines appended to the file, echoed to stdout unless quiet
//
// The configuration is validated before any file is touched.
package sink
