package dispatch

import "encoding/binary"

// controlMsg is the JSON control message sent over the supervisory TCP
// connection, wire-exact per spec.md §6.5.
type controlMsg struct {
	Type     string `json:"type"` // "call_start" or "call_end"
	ID       string `json:"id"`
	TG       int    `json:"tg"`
	Freq     int64  `json:"freq"`
	AlphaTag string `json:"alphaTag"`
}

// udpHeaderLen is the fixed-size header preceding every UDP PCM payload:
// u32 seq | u32 tgid_or_freq | u32 freq | u32 sample_rate | u16 sample_count.
const udpHeaderLen = 4 + 4 + 4 + 4 + 2

// encodeUDPPacket builds the wire-exact packet from spec.md §6.5.
func encodeUDPPacket(seq uint32, tgidOrFreq, freq uint32, sampleRate uint32, pcm []byte) []byte {
	sampleCount := uint16(len(pcm) / 2)
	buf := make([]byte, udpHeaderLen+len(pcm))
	binary.LittleEndian.PutUint32(buf[0:4], seq)
	binary.LittleEndian.PutUint32(buf[4:8], tgidOrFreq)
	binary.LittleEndian.PutUint32(buf[8:12], freq)
	binary.LittleEndian.PutUint32(buf[12:16], sampleRate)
	binary.LittleEndian.PutUint16(buf[16:18], sampleCount)
	copy(buf[udpHeaderLen:], pcm)
	return buf
}
