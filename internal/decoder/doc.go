// Package decoder owns the scan loop that turns a serial byte stream into
// annotated MACS records.
//
// Loop order per frame:
// - read a 2-byte window and match it against the start-of-frame markers
// - flush both transport directions
// - decode header and payload, resolve labels
// - hand the record to the handler, then pace
//
// A window that matches nothing is dropped whole. Framing failures are
// counted and scanning resumes; they never end the loop.
package decoder
