package correlator

// CallStartInput is what the Correlator needs from a decoder call_start
// message, independent of the status endpoint's wire schema.
type CallStartInput struct {
	DecoderID    string
	Freq         int64
	Talkgroup    int
	TalkgroupTag string
}

// CallSourceInput is one source transmission reported with a call_end.
type CallSourceInput struct {
	Src       int
	Time      int64
	Pos       float64
	Emergency bool
	Tag       string
}

// CallEndInput is what the Correlator needs from a decoder call_end
// message.
type CallEndInput struct {
	DecoderID            string
	Freq                 int64
	Talkgroup            int
	TalkgroupTag         string
	TalkgroupDescription string
	TalkgroupGroup       string
	StartTime            int64
	StopTime             int64
	Length               float64
	Emergency            bool
	Encrypted            bool
	Filename             string
	AudioType            string
	Sources              []CallSourceInput
}

// ActiveCallInput is one entry from a calls_active reconciliation message.
type ActiveCallInput struct {
	DecoderID    string
	Freq         int64
	Talkgroup    int
	TalkgroupTag string
	ElapsedTime  int64
}

// RecordingCompleteInput is what the Correlator needs from a confirmed
// directory-watcher sidecar arrival.
type RecordingCompleteInput struct {
	Talkgroup    int
	TalkgroupTag string
	Freq         int64
	StartTime    int64
	StopTime     int64
	Emergency    bool
	Encrypted    bool
	AudioType    string
	CallLength   float64
	AudioPath    string
}
