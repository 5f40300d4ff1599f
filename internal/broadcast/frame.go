package broadcast

import (
	"encoding/binary"
	"encoding/json"
)

// binaryHeader is the JSON header prefixing every binary audio/FFT frame,
// per the wire layout in spec.md §4.G.
type binaryHeader struct {
	Type      string `json:"type"` // "audio" or "fft"
	ChannelID int64  `json:"channel_id,omitempty"`
	Talkgroup int    `json:"talkgroup,omitempty"`
	Frequency int64  `json:"frequency,omitempty"`
	CallID    string `json:"call_id,omitempty"`
}

// encodeBinaryFrame builds [uint32 LE header_len][header JSON][payload].
func encodeBinaryFrame(h binaryHeader, payload []byte) ([]byte, error) {
	header, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 4+len(header)+len(payload))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(header)))
	copy(buf[4:4+len(header)], header)
	copy(buf[4+len(header):], payload)
	return buf, nil
}
