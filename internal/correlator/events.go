package correlator

// Event is one outbound correlator event, consumed by the Broadcast Hub
// and routed according to the topic-filter table in spec.md §4.G.
type Event struct {
	Kind       string // "call_start", "call_end", "calls_active", "new_recording", "error"
	ChannelKey int64  // topic key; ignored when All is true
	All        bool   // true for kinds broadcast regardless of subscription (calls_active, error)
	Payload    any
}

// CallStartPayload is the textual body of a call_start event.
type CallStartPayload struct {
	ID        string `json:"id"`
	Freq      int64  `json:"freq"`
	Talkgroup int    `json:"talkgroup"`
	Label     string `json:"talkgrouptag"`
	StartTime int64  `json:"start_time"`
}

// CallEndPayload is the textual body of a call_end event.
type CallEndPayload struct {
	ID         string  `json:"id"`
	Freq       int64   `json:"freq"`
	Talkgroup  int     `json:"talkgroup"`
	Label      string  `json:"talkgrouptag"`
	StartTime  int64   `json:"start_time"`
	StopTime   int64   `json:"stop_time"`
	Duration   float64 `json:"duration"`
	Emergency  bool    `json:"emergency"`
	Encrypted  bool    `json:"encrypted"`
	AudioFile  string  `json:"audio_file"`
	AudioType  string  `json:"audio_type"`
	SystemType string  `json:"system_type"`
}

// NewRecordingPayload is the textual body of a new_recording event.
type NewRecordingPayload struct {
	ID        string `json:"id"`
	AudioFile string `json:"audio_file"`
}

// CallsActivePayload is the textual body of a calls_active reconciliation
// event, broadcast to all subscribers.
type CallsActivePayload struct {
	IDs []string `json:"ids"`
}

// ErrorPayload surfaces a persistence failure to subscribers without
// aborting the pipeline (spec.md §4.F's failure semantics).
type ErrorPayload struct {
	Stage string `json:"stage"`
	ID    string `json:"id"`
	Error string `json:"error"`
}
