package logtail

import (
	"regexp"
	"strconv"
	"strings"
)

// pattern is one entry in the ordered classification list. The first
// pattern whose regex matches a line wins; extract fills in the typed
// fields of the event from the line's regex capture groups.
type pattern struct {
	kind    Kind
	re      *regexp.Regexp
	extract func(e *Event, m []string)
}

var patterns = []pattern{
	{
		kind: KindGrant,
		re:   regexp.MustCompile(`Starting P25 Recorder.*?Num \[(\d+)\].*?Freq \[(\d+)\].*?Talkgroup \[(\d+)\]`),
		extract: func(e *Event, m []string) {
			e.RecorderIndex = atoi(m[1])
			e.Frequency = atoi64(m[2])
			e.Talkgroup = atoi(m[3])
		},
	},
	{
		kind: KindEnd,
		re:   regexp.MustCompile(`Stopping P25 Recorder.*?Num \[(\d+)\]`),
		extract: func(e *Event, m []string) {
			e.RecorderIndex = atoi(m[1])
		},
	},
	{
		kind: KindEncrypted,
		re:   regexp.MustCompile(`ENCRYPTED`),
	},
	{
		kind: KindDecodeRate,
		re:   regexp.MustCompile(`Control channel decode rate:\s*([\d.]+)`),
		extract: func(e *Event, m []string) {
			rate, _ := strconv.ParseFloat(m[1], 64)
			e.DecodeRate = rate
		},
	},
	{
		kind: KindSystemInfo,
		re:   regexp.MustCompile(`WACN\s*\[?([0-9A-Fa-fx]+)\]?.*?NAC\s*\[?([0-9A-Fa-fx]+)\]?.*?System ID\s*\[?([0-9A-Fa-fx]+)\]?`),
		extract: func(e *Event, m []string) {
			e.WACN = m[1]
			e.NAC = m[2]
			e.SystemID = m[3]
		},
	},
	{
		kind: KindUnit,
		re:   regexp.MustCompile(`Unit ID\s*[:=]?\s*(\d+)`),
		extract: func(e *Event, m []string) {
			e.SourceUnit = atoi(m[1])
		},
	},
	{
		kind: KindNoRecorder,
		re:   regexp.MustCompile(`No channel recorder`),
	},
	{
		kind: KindOutOfBand,
		re:   regexp.MustCompile(`Out of band`),
	},
	{
		kind: KindUpdate,
		re:   regexp.MustCompile(`(Update|Grant).*?Talkgroup \[(\d+)\]`),
		extract: func(e *Event, m []string) {
			e.Talkgroup = atoi(m[2])
		},
	},
}

// classify matches line against the ordered pattern list and returns the
// populated Event along with whether any pattern matched. Per the Open
// Question decision in spec.md §9, an unrecognized line is classified as
// "update" only if it begins with "Update"; otherwise it is dropped.
func classify(line string) (Event, bool) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		e := Event{Kind: p.kind, Raw: line}
		if p.extract != nil {
			p.extract(&e, m)
		}
		return e, true
	}

	if strings.HasPrefix(strings.TrimSpace(line), "Update") {
		return Event{Kind: KindUpdate, Raw: line}, true
	}

	return Event{}, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
