package replication

import (
	"encoding/json"
	"fmt"

	"party-sync-service/internal/party"
)

// Kind names the document field a notification carries.
type Kind string

const (
	KindPlayback Kind = "playback"
	KindQueue    Kind = "queue"
	KindHistory  Kind = "history"
	KindReport   Kind = "report"
)

// Envelope is the wire shape of a change notification.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func encodeEnvelope(kind Kind, data []byte) ([]byte, error) {
	return json.Marshal(Envelope{Kind: kind, Data: data})
}

// dispatch decodes one field snapshot and hands it to the matching handler.
func dispatch(h Handlers, kind Kind, data []byte) error {
	switch kind {
	case KindPlayback:
		var st party.PlaybackState
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("decode playback: %w", err)
		}
		if h.OnPlayback != nil {
			h.OnPlayback(st)
		}
	case KindQueue:
		var q party.Queue
		if err := json.Unmarshal(data, &q); err != nil {
			return fmt.Errorf("decode queue: %w", err)
		}
		if h.OnQueue != nil {
			h.OnQueue(q)
		}
	case KindHistory:
		var entries []party.HistoryEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("decode history: %w", err)
		}
		if h.OnHistory != nil {
			h.OnHistory(entries)
		}
	case KindReport:
		var r party.ParticipantReport
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("decode report: %w", err)
		}
		if h.OnReport != nil {
			h.OnReport(r)
		}
	default:
		return fmt.Errorf("unknown notification kind %q", kind)
	}
	return nil
}

func dispatchEnvelope(h Handlers, payload []byte) error {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	return dispatch(h, env.Kind, env.Data)
}

// decodeDocument builds a Document from raw field values. Malformed fields are
// logged and left empty.
func decodeDocument(sessionID string, fields map[string]string, reports map[string]string) Document {
	var doc Document
	h := Handlers{
		OnPlayback: func(st party.PlaybackState) { doc.Playback = &st },
		OnQueue:    func(q party.Queue) { doc.Queue = &q },
		OnHistory:  func(e []party.HistoryEntry) { doc.History = e },
		OnReport: func(r party.ParticipantReport) {
			if doc.Reports == nil {
				doc.Reports = map[string]party.ParticipantReport{}
			}
			doc.Reports[r.ParticipantID] = r
		},
	}
	for _, kind := range []Kind{KindPlayback, KindQueue, KindHistory} {
		raw, ok := fields[string(kind)]
		if !ok {
			continue
		}
		if err := dispatch(h, kind, []byte(raw)); err != nil {
			log.Warnw("malformed document field", "session", sessionID, "field", kind, "err", err)
		}
	}
	for id, raw := range reports {
		if err := dispatch(h, KindReport, []byte(raw)); err != nil {
			log.Warnw("malformed participant report", "session", sessionID, "participant", id, "err", err)
		}
	}
	return doc
}

// deliver replays a Document to handlers in a fixed order.
func (d Document) deliver(h Handlers) {
	if d.Queue != nil && h.OnQueue != nil {
		h.OnQueue(*d.Queue)
	}
	if d.History != nil && h.OnHistory != nil {
		h.OnHistory(d.History)
	}
	if h.OnReport != nil {
		for _, r := range d.Reports {
			h.OnReport(r)
		}
	}
	if d.Playback != nil && h.OnPlayback != nil {
		h.OnPlayback(*d.Playback)
	}
}
