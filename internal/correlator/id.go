package correlator

import "fmt"

// DeriveID computes the canonical call ID: "{channel_key}-{start_unix_seconds}"
// (spec.md §4.F). channelKey is the talkgroup number for trunked systems or
// the frequency in Hz for conventional systems.
func DeriveID(channelKey, startUnix int64) string {
	return fmt.Sprintf("%d-%d", channelKey, startUnix)
}

// DisplayLabel returns tag if non-empty, else a conventional "{MHz,4}"
// fallback derived from the frequency (spec.md §4.F).
func DisplayLabel(tag string, freqHz int64) string {
	if tag != "" {
		return tag
	}
	return fmt.Sprintf("%.4f MHz", float64(freqHz)/1_000_000.0)
}
