package broadcast

import "encoding/json"

// textEnvelope wraps every outbound textual message kind.
type textEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func encodeText(kind string, data any) ([]byte, error) {
	return json.Marshal(textEnvelope{Type: kind, Data: data})
}

// connectedMsg is unicast to a subscriber immediately after connect.
type connectedMsg struct {
	SubscriberID string `json:"subscriber_id"`
}

// inboundCommand is the shape of every client-to-hub control message
// (spec.md §4.G's inbound client commands).
type inboundCommand struct {
	Type       string  `json:"type"`
	Talkgroups []int64 `json:"talkgroups"`
	Enabled    *bool   `json:"enabled"`
}

const (
	cmdSubscribeAll = "subscribe_all"
	cmdSubscribe    = "subscribe"
	cmdUnsubscribe  = "unsubscribe"
	cmdEnableAudio  = "enable_audio"
	cmdEnableFFT    = "enable_fft"
)

// applyCommand mutates the subscriber per one decoded inbound command.
func applyCommand(s *Subscriber, cmd inboundCommand) {
	switch cmd.Type {
	case cmdSubscribeAll:
		s.SubscribeAll()
	case cmdSubscribe:
		s.Subscribe(cmd.Talkgroups)
	case cmdUnsubscribe:
		s.Unsubscribe(cmd.Talkgroups)
	case cmdEnableAudio:
		if cmd.Enabled != nil {
			s.SetAudio(*cmd.Enabled)
		}
	case cmdEnableFFT:
		if cmd.Enabled != nil {
			s.SetFFT(*cmd.Enabled)
		}
	}
}
