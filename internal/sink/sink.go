// Package sink implements the byte-writable destinations the fan-out
// encoder writes to (spec.md §4.5): a resilient network sink fronting an
// Icecast/SHOUTcast source connection, and a plain local-file sink for
// offline/dev use.
package sink

// Sink is the capability the fan-out encoder depends on. Write must never
// block the caller for longer than a bounded, small amount of time — it is
// called from the real-time station loop.
type Sink interface {
	Write(chunk []byte) error
	Close() error
}
