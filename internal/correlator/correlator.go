// Package correlator joins the decoder status endpoint, log tailer, and
// recording directory watcher into canonical call-start/call-end/
// new_recording events and persists calls (spec.md §4.F).
package correlator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenprima/scannerd/internal/metacache"
	"github.com/lumenprima/scannerd/internal/store"
)

// Persister is the subset of the persistence store the Correlator writes
// through. Narrowed to an interface so the correlation logic is testable
// without a live database.
type Persister interface {
	UpsertTalkgroup(ctx context.Context, id int, alphaTag, description, groupName, groupTag, mode string, updatedAt int64) error
	GetOrCreateChannel(ctx context.Context, frequency int64, systemType string, updatedAt int64) (*store.Channel, error)
	UpsertCall(ctx context.Context, c *store.Call) error
	InsertCallSources(ctx context.Context, callID string, sources []store.CallSource) error
}

// activeCallState is the in-memory record of one currently open call.
type activeCallState struct {
	ChannelKey int64
	Freq       int64
	Talkgroup  int
	Label      string
	Start      int64
}

// Correlator is the call-lifecycle engine described in spec.md §4.F.
type Correlator struct {
	store    Persister
	lookup   *metacache.Lookup
	tracker  *metacache.ChannelTracker
	audioDir string
	log      zerolog.Logger

	systemTypeMu sync.RWMutex
	systemType   string

	locks *keyedMutex
	ends  *endTracker

	activeMu sync.Mutex
	active   map[string]activeCallState

	Emit func(Event)
}

// New builds a Correlator. systemType is the persisted system_type
// ("p25"/"trunked" or "conventional"), read once at supervisor startup.
func New(s Persister, lookup *metacache.Lookup, tracker *metacache.ChannelTracker, audioDir, systemType string, log zerolog.Logger) *Correlator {
	return &Correlator{
		store:      s,
		lookup:     lookup,
		tracker:    tracker,
		audioDir:   audioDir,
		log:        log.With().Str("component", "correlator").Logger(),
		systemType: systemType,
		locks:      newKeyedMutex(),
		ends:       newEndTracker(),
		active:     make(map[string]activeCallState),
	}
}

// ActiveCallCount returns the number of calls currently open, for metrics.
func (c *Correlator) ActiveCallCount() int {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	return len(c.active)
}

func (c *Correlator) isConventional() bool {
	c.systemTypeMu.RLock()
	defer c.systemTypeMu.RUnlock()
	return c.systemType == "conventional"
}

// channelKey returns the logical channel key per the system-type rule:
// talkgroup for trunked, frequency for conventional.
func (c *Correlator) channelKey(talkgroup int, freq int64) int64 {
	if c.isConventional() {
		return freq
	}
	return int64(talkgroup)
}

func (c *Correlator) emit(e Event) {
	if c.Emit != nil {
		c.Emit(e)
	}
}

func (c *Correlator) setActive(id string, s activeCallState) {
	c.activeMu.Lock()
	c.active[id] = s
	c.activeMu.Unlock()
	c.tracker.AddCall(id, metacache.ActiveCall{Freq: s.Freq, TG: s.Talkgroup, Label: s.Label, Start: s.Start})
}

func (c *Correlator) removeActive(id string) {
	c.activeMu.Lock()
	delete(c.active, id)
	c.activeMu.Unlock()
	c.tracker.RemoveCall(id)
}

func (c *Correlator) getActive(id string) (activeCallState, bool) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	s, ok := c.active[id]
	return s, ok
}

// ActiveIDs returns the canonical IDs of all currently active calls.
func (c *Correlator) ActiveIDs() []string {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	return ids
}

// ActiveIDForChannel returns the canonical ID of the currently active call
// on the given channel key, if any. Ingest listeners use this to stamp
// outbound audio frames and dispatch forwarding with a call ID.
func (c *Correlator) ActiveIDForChannel(channelKey int64) (string, bool) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	for id, s := range c.active {
		if s.ChannelKey == channelKey {
			return id, true
		}
	}
	return "", false
}

// HandleCallStart processes a decoder call_start message.
func (c *Correlator) HandleCallStart(ctx context.Context, in CallStartInput) {
	key := c.channelKey(in.Talkgroup, in.Freq)
	start := time.Now().Unix()
	id := DeriveID(key, start)

	unlock := c.locks.lock(id)
	defer unlock()

	if _, exists := c.getActive(id); exists {
		return // duplicate call_start
	}

	label := DisplayLabel(in.TalkgroupTag, in.Freq)
	c.setActive(id, activeCallState{ChannelKey: key, Freq: in.Freq, Talkgroup: in.Talkgroup, Label: label, Start: start})

	call := &store.Call{
		ID:          id,
		TalkgroupID: in.Talkgroup,
		Frequency:   in.Freq,
		StartTime:   start,
		SystemType:  c.systemTypeLabel(),
		CreatedAt:   start,
	}
	if err := c.persistNewCall(ctx, call, in.Talkgroup, in.TalkgroupTag, in.Freq, start); err != nil {
		c.log.Error().Err(err).Str("id", id).Msg("failed to persist call_start")
		c.emit(Event{Kind: "error", All: true, Payload: ErrorPayload{Stage: "call_start", ID: id, Error: err.Error()}})
	}

	c.emit(Event{
		Kind:       "call_start",
		ChannelKey: key,
		Payload:    CallStartPayload{ID: id, Freq: in.Freq, Talkgroup: in.Talkgroup, Label: label, StartTime: start},
	})
}

// HandleCallEnd processes a decoder call_end message.
func (c *Correlator) HandleCallEnd(ctx context.Context, in CallEndInput) {
	key := c.channelKey(in.Talkgroup, in.Freq)
	id := DeriveID(key, in.StartTime)

	unlock := c.locks.lock(id)
	defer unlock()

	if c.ends.observe(key, in.StartTime, id) {
		c.log.Debug().Str("id", id).Msg("suppressing duplicate call-end")
		return
	}

	audioFile := normalizeAudioPath(c.audioDir, in.Filename, id)
	duration := float64(in.StopTime - in.StartTime)
	if in.Length > 0 {
		duration = in.Length
	}

	call := &store.Call{
		ID:          id,
		TalkgroupID: in.Talkgroup,
		Frequency:   in.Freq,
		StartTime:   in.StartTime,
		StopTime:    &in.StopTime,
		Duration:    &duration,
		Emergency:   in.Emergency,
		Encrypted:   in.Encrypted,
		AudioFile:   &audioFile,
		AudioType:   &in.AudioType,
		SystemType:  c.systemTypeLabel(),
		CreatedAt:   in.StartTime,
	}

	if err := c.persistEndedCall(ctx, call, in); err != nil {
		c.log.Error().Err(err).Str("id", id).Msg("failed to persist call_end")
		c.emit(Event{Kind: "error", All: true, Payload: ErrorPayload{Stage: "call_end", ID: id, Error: err.Error()}})
	}

	c.removeActive(id)
	c.locks.forget(id)

	c.emit(Event{
		Kind:       "call_end",
		ChannelKey: key,
		Payload: CallEndPayload{
			ID: id, Freq: in.Freq, Talkgroup: in.Talkgroup,
			Label: DisplayLabel(in.TalkgroupTag, in.Freq),
			StartTime: in.StartTime, StopTime: in.StopTime, Duration: duration,
			Emergency: in.Emergency, Encrypted: in.Encrypted,
			AudioFile: audioFile, AudioType: in.AudioType, SystemType: c.systemTypeLabel(),
		},
	})
	c.emit(Event{
		Kind:       "new_recording",
		ChannelKey: key,
		Payload:    NewRecordingPayload{ID: id, AudioFile: audioFile},
	})
}

// HandleRecordingComplete processes a confirmed sidecar arrival from the
// directory watcher. If it describes a call already terminated via the
// status endpoint within the dedup window, it is suppressed.
func (c *Correlator) HandleRecordingComplete(ctx context.Context, in RecordingCompleteInput) {
	key := c.channelKey(in.Talkgroup, in.Freq)
	id := DeriveID(key, in.StartTime)

	unlock := c.locks.lock(id)
	defer unlock()

	if c.ends.observe(key, in.StartTime, id) {
		c.log.Debug().Str("id", id).Msg("suppressing duplicate recording-complete")
		return
	}

	duration := in.CallLength
	if duration == 0 {
		duration = float64(in.StopTime - in.StartTime)
	}

	call := &store.Call{
		ID:          id,
		TalkgroupID: in.Talkgroup,
		Frequency:   in.Freq,
		StartTime:   in.StartTime,
		StopTime:    &in.StopTime,
		Duration:    &duration,
		Emergency:   in.Emergency,
		Encrypted:   in.Encrypted,
		AudioFile:   &in.AudioPath,
		AudioType:   &in.AudioType,
		SystemType:  c.systemTypeLabel(),
		CreatedAt:   in.StartTime,
	}

	endIn := CallEndInput{Freq: in.Freq, Talkgroup: in.Talkgroup, TalkgroupTag: in.TalkgroupTag}
	if err := c.persistEndedCall(ctx, call, endIn); err != nil {
		c.log.Error().Err(err).Str("id", id).Msg("failed to persist recording-complete")
		c.emit(Event{Kind: "error", All: true, Payload: ErrorPayload{Stage: "recording_complete", ID: id, Error: err.Error()}})
	}

	c.removeActive(id)
	c.locks.forget(id)

	c.emit(Event{
		Kind:       "new_recording",
		ChannelKey: key,
		Payload:    NewRecordingPayload{ID: id, AudioFile: in.AudioPath},
	})
}

// HandleCallsActive reconciles the in-memory active set against the
// decoder's authoritative snapshot: any tracked ID absent from the new
// list is removed.
func (c *Correlator) HandleCallsActive(calls []ActiveCallInput) {
	want := make(map[string]activeCallState, len(calls))
	for _, a := range calls {
		key := c.channelKey(a.Talkgroup, a.Freq)
		start := time.Now().Unix() - a.ElapsedTime
		id := DeriveID(key, start)
		want[id] = activeCallState{ChannelKey: key, Freq: a.Freq, Talkgroup: a.Talkgroup, Label: DisplayLabel(a.TalkgroupTag, a.Freq), Start: start}
	}

	c.activeMu.Lock()
	for id, s := range want {
		if _, exists := c.active[id]; !exists {
			c.active[id] = s
		}
	}
	for id := range c.active {
		if _, stillActive := want[id]; !stillActive {
			delete(c.active, id)
		}
	}
	snapshot := make(map[string]metacache.ActiveCall, len(c.active))
	ids := make([]string, 0, len(c.active))
	for id, s := range c.active {
		snapshot[id] = metacache.ActiveCall{Freq: s.Freq, TG: s.Talkgroup, Label: s.Label, Start: s.Start}
		ids = append(ids, id)
	}
	c.activeMu.Unlock()

	c.tracker.Reconcile(snapshot)

	c.emit(Event{Kind: "calls_active", All: true, Payload: CallsActivePayload{IDs: ids}})
}

func (c *Correlator) systemTypeLabel() string {
	c.systemTypeMu.RLock()
	defer c.systemTypeMu.RUnlock()
	return c.systemType
}

// persistNewCall applies the trunked/conventional persistence split for a
// freshly started call: upsert-talkgroup or get-or-create-channel, then
// insert-or-replace the call row.
func (c *Correlator) persistNewCall(ctx context.Context, call *store.Call, talkgroup int, tag string, freq int64, now int64) error {
	if c.isConventional() {
		ch, err := c.store.GetOrCreateChannel(ctx, freq, "conventional", now)
		if err != nil {
			return err
		}
		call.ChannelID = &ch.ID
		call.TalkgroupID = 0
	} else if talkgroup > 0 {
		if err := c.store.UpsertTalkgroup(ctx, talkgroup, tag, "", "", "", "", now); err != nil {
			return err
		}
	}
	return c.store.UpsertCall(ctx, call)
}

// persistEndedCall applies the same split for a terminal call, then
// bulk-inserts its call sources in one transaction.
func (c *Correlator) persistEndedCall(ctx context.Context, call *store.Call, in CallEndInput) error {
	now := call.StartTime
	if c.isConventional() {
		ch, err := c.store.GetOrCreateChannel(ctx, call.Frequency, "conventional", now)
		if err != nil {
			return err
		}
		call.ChannelID = &ch.ID
		call.TalkgroupID = 0
		c.lookup.Channels.Invalidate(call.Frequency)
	} else if in.Talkgroup > 0 {
		if err := c.store.UpsertTalkgroup(ctx, in.Talkgroup, in.TalkgroupTag, in.TalkgroupDescription, in.TalkgroupGroup, "", "", now); err != nil {
			return err
		}
		c.lookup.Talkgroups.Invalidate(in.Talkgroup)
	}

	if err := c.store.UpsertCall(ctx, call); err != nil {
		return err
	}

	if len(in.Sources) == 0 {
		return nil
	}
	sources := make([]store.CallSource, len(in.Sources))
	for i, s := range in.Sources {
		var tag *string
		if s.Tag != "" {
			tag = &s.Tag
		}
		sources[i] = store.CallSource{SourceID: s.Src, Timestamp: s.Time, Position: s.Pos, Emergency: s.Emergency, Tag: tag}
	}
	return c.store.InsertCallSources(ctx, call.ID, sources)
}
