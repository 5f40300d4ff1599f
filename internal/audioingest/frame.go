// Package audioingest binds the UDP audio socket, auto-detects the
// datagram's wire format, and emits enriched AudioFrames (spec.md §4.A).
package audioingest

// AudioFrame is one parsed, enriched PCM packet.
type AudioFrame struct {
	ChannelKey int64  // talkgroup (trunked) or frequency (conventional)
	PCM        []byte // signed 16-bit little-endian samples

	Talkgroup int64
	Frequency int64
	Meta      map[string]any

	// Populated by the metadata cache during enrichment.
	AlphaTag    string
	GroupName   string
	GroupTag    string
	Description string
	SystemType  string
}
