package audioingest

import (
	"encoding/binary"
	"encoding/json"
	"errors"
)

// maxEmbeddedScan bounds how far formats 2 and 3 will scan for a matching
// closing brace before giving up.
const maxEmbeddedScan = 2000

// maxPrefixedLen is the exclusive upper bound on the length-prefixed JSON
// header in format 1; a length at or above this value is treated as not a
// valid header and format 4 is tried instead.
const maxPrefixedLen = 10000

var errNoFormatMatched = errors.New("audioingest: no wire format matched")

// Parse detects the datagram's wire format (spec.md §4.A) and returns an
// AudioFrame with ChannelKey, Talkgroup, Frequency and Meta populated.
// Enrichment fields are left zero; callers fill them in via the metadata
// cache.
func Parse(datagram []byte) (AudioFrame, error) {
	if f, ok := parseFormat1(datagram); ok {
		return f, nil
	}
	if f, ok := parseEmbedded(datagram, 4); ok {
		return f, nil
	}
	if f, ok := parseEmbedded(datagram, 0); ok {
		return f, nil
	}
	if f, ok := parseFormat4(datagram); ok {
		return f, nil
	}
	return AudioFrame{}, errNoFormatMatched
}

// parseFormat1 handles the length-prefixed JSON header: LE32(L) | JSON[L] | PCM.
func parseFormat1(datagram []byte) (AudioFrame, bool) {
	if len(datagram) < 4 {
		return AudioFrame{}, false
	}
	l := binary.LittleEndian.Uint32(datagram[:4])
	if l == 0 || l >= maxPrefixedLen {
		return AudioFrame{}, false
	}
	end := 4 + int(l)
	if end > len(datagram) {
		return AudioFrame{}, false
	}

	var meta map[string]any
	if err := json.Unmarshal(datagram[4:end], &meta); err != nil {
		return AudioFrame{}, false
	}
	if _, ok := meta["talkgroup"]; !ok {
		return AudioFrame{}, false
	}

	f := frameFromMeta(meta, datagram[end:])
	return f, true
}

// parseEmbedded handles formats 2 and 3: a JSON object starting at `from`,
// brace-matched within maxEmbeddedScan bytes, with PCM following it.
func parseEmbedded(datagram []byte, from int) (AudioFrame, bool) {
	if from >= len(datagram) || datagram[from] != '{' {
		return AudioFrame{}, false
	}

	end, ok := matchBraces(datagram, from)
	if !ok {
		return AudioFrame{}, false
	}

	var meta map[string]any
	if err := json.Unmarshal(datagram[from:end+1], &meta); err != nil {
		return AudioFrame{}, false
	}

	f := frameFromMeta(meta, datagram[end+1:])
	return f, true
}

// parseFormat4 is the always-available fallback: LE32 talkgroup ID | PCM.
func parseFormat4(datagram []byte) (AudioFrame, bool) {
	if len(datagram) < 4 {
		return AudioFrame{}, false
	}
	tg := binary.LittleEndian.Uint32(datagram[:4])
	return AudioFrame{
		ChannelKey: int64(tg),
		Talkgroup:  int64(tg),
		PCM:        datagram[4:],
	}, true
}

// matchBraces scans datagram starting at the opening brace at index start,
// returning the index of the matching closing brace. Bounded to
// maxEmbeddedScan bytes of scan distance from start.
func matchBraces(datagram []byte, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	limit := start + maxEmbeddedScan
	if limit > len(datagram) {
		limit = len(datagram)
	}

	for i := start; i < limit; i++ {
		c := datagram[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// frameFromMeta builds an AudioFrame from decoded JSON metadata, deriving
// the channel key from talkgroup (preferred), tgid, or frequency.
func frameFromMeta(meta map[string]any, pcm []byte) AudioFrame {
	f := AudioFrame{Meta: meta, PCM: pcm}

	if tg, ok := numericField(meta, "talkgroup"); ok {
		f.Talkgroup = tg
		f.ChannelKey = tg
	} else if tg, ok := numericField(meta, "tgid"); ok {
		f.Talkgroup = tg
		f.ChannelKey = tg
	}

	if freq, ok := numericField(meta, "freq"); ok {
		f.Frequency = freq
		if f.ChannelKey == 0 {
			f.ChannelKey = freq
		}
	}

	return f
}

func numericField(meta map[string]any, key string) (int64, bool) {
	v, ok := meta[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
