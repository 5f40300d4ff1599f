// Package statusendpoint accepts the decoder's long-lived duplex status
// socket and parses its JSON messages (spec.md §4.C).
package statusendpoint

// CallStartMsg is a `type: "call_start"` message.
type CallStartMsg struct {
	ID           string `json:"id"`
	Freq         int64  `json:"freq"`
	Talkgroup    int    `json:"talkgroup"`
	TalkgroupTag string `json:"talkgrouptag"`
	ElapsedTime  int64  `json:"elapsedTime"`
}

// CallEndMsg is a `type: "call_end"` message.
type CallEndMsg struct {
	ID                    string   `json:"id"`
	Freq                  int64    `json:"freq"`
	Talkgroup             int      `json:"talkgroup"`
	TalkgroupTag          string   `json:"talkgrouptag"`
	TalkgroupDescription  string   `json:"talkgroupDescription"`
	TalkgroupGroup        string   `json:"talkgroupGroup"`
	StartTime             int64    `json:"startTime"`
	StopTime              int64    `json:"stopTime"`
	Length                float64  `json:"length"`
	Emergency             bool     `json:"emergency"`
	Encrypted             bool     `json:"encrypted"`
	Filename              string   `json:"filename"`
	AudioType             string   `json:"audioType"`
	FreqList              []int64  `json:"freqList"`
	SrcList               []Source `json:"srcList"`
}

// Source is one entry in a call_end's srcList.
type Source struct {
	Src       int     `json:"src"`
	Time      int64   `json:"time"`
	Pos       float64 `json:"pos"`
	Emergency bool    `json:"emergency"`
	Tag       string  `json:"tag"`
}

// ActiveCall is one entry in a calls_active message.
type ActiveCall struct {
	ID           string `json:"id"`
	Freq         int64  `json:"freq"`
	Talkgroup    int    `json:"talkgroup"`
	TalkgroupTag string `json:"talkgrouptag"`
	ElapsedTime  int64  `json:"elapsedTime"`
}

// CallsActiveMsg is a `type: "calls_active"` message.
type CallsActiveMsg struct {
	Calls []ActiveCall `json:"calls"`
}

// SourceRate is one source's decode rate in a rates message.
type SourceRate struct {
	DecodeRate     float64 `json:"decoderate"`
	ControlChannel bool    `json:"control_channel"`
}

// RatesMsg is a `type: "rates"` message.
type RatesMsg struct {
	Rates map[string]SourceRate `json:"rates"`
}

// envelope is used only to sniff the `type` discriminator before decoding
// into the concrete message.
type envelope struct {
	Type string `json:"type"`
}
