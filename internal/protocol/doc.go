// Package protocol owns the MACS wire contract.
//
// Ownership boundary:
// - frame: start-of-frame markers, header and payload decode
// - names: node and command label tables
// - Record: a decoded frame annotated for output
package protocol
