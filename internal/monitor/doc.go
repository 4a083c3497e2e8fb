// Package monitor owns the logging session lifecycle.
//
// Lifecycle order:
// - validate config (no I/O)
// - load name tables, open sink, open transport, open capture
// - scan until cancelled
// - teardown in reverse order on every exit path
//
// Replay reuses the same sink and name tables against a capture file and
// never touches the transport.
package monitor
