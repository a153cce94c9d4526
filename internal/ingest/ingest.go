// Package ingest verifies inbound Slack event signatures, applies
// at-most-once dedupe, persists raw provenance, and routes each event
// onto the priority queue the worker pool drains.
package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/scalytics/threadwatch/internal/bus"
	"github.com/scalytics/threadwatch/internal/store"
	"github.com/scalytics/threadwatch/internal/threadstate"
)

const signatureFreshnessWindow = 300 * time.Second

// VerifySlackSignature checks the `v0=`-prefixed HMAC-SHA256 signature
// Slack attaches to every request, rejecting stale timestamps.
func VerifySlackSignature(body []byte, timestamp, signature, secret string) bool {
	if timestamp == "" || signature == "" || secret == "" {
		return false
	}
	tsInt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := time.Since(time.Unix(tsInt, 0))
	if age < 0 {
		age = -age
	}
	if age > signatureFreshnessWindow {
		return false
	}
	base := "v0:" + timestamp + ":" + string(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Envelope is the typed event envelope spec'd for /slack/events and
// /backfill: {event_id, event_time?, event_ts?, team_id?, type, event}.
type Envelope struct {
	EventID   string       `json:"event_id"`
	EventTime *int64       `json:"event_time,omitempty"`
	EventTS   string       `json:"event_ts,omitempty"`
	TeamID    string       `json:"team_id,omitempty"`
	Type      string       `json:"type"`
	Event     InnerPayload `json:"event"`
}

// InnerPayload carries every field any supported inner-event kind needs;
// unused fields are simply absent in a given event's JSON.
type InnerPayload struct {
	Type            string          `json:"type"`
	Channel         string          `json:"channel,omitempty"`
	User            string          `json:"user,omitempty"`
	Text            string          `json:"text,omitempty"`
	TS              string          `json:"ts,omitempty"`
	ThreadTS        string          `json:"thread_ts,omitempty"`
	Reactions       []store.Reaction `json:"reactions,omitempty"`
	Subtype         string          `json:"subtype,omitempty"`
	Message         *NestedMessage  `json:"message,omitempty"`
	PreviousMessage *NestedMessage  `json:"previous_message,omitempty"`
	Item            *ItemRef        `json:"item,omitempty"`
	Reaction        string          `json:"reaction,omitempty"`
}

// NestedMessage is the `message`/`previous_message` sub-object Slack
// attaches to message_changed/message_deleted events.
type NestedMessage struct {
	TS   string `json:"ts,omitempty"`
	Text string `json:"text,omitempty"`
	User string `json:"user,omitempty"`
}

// ItemRef is the `item` sub-object Slack attaches to reaction events,
// identifying the message that was reacted to.
type ItemRef struct {
	Type    string `json:"type,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

// toInnerEvent maps the wire envelope onto the reducer's InnerEvent,
// resolving each supported kind's target message identity.
func toInnerEvent(env Envelope) threadstate.InnerEvent {
	switch env.Event.Type {
	case "message":
		switch env.Event.Subtype {
		case "message_changed":
			targetTS := ""
			text := ""
			if env.Event.Message != nil {
				targetTS = env.Event.Message.TS
				text = env.Event.Message.Text
			}
			if targetTS == "" && env.Event.PreviousMessage != nil {
				targetTS = env.Event.PreviousMessage.TS
			}
			return threadstate.InnerEvent{Kind: "message", Subtype: "message_changed", Channel: env.Event.Channel, TargetTS: targetTS, Text: text}
		case "message_deleted":
			targetTS := ""
			if env.Event.PreviousMessage != nil {
				targetTS = env.Event.PreviousMessage.TS
			}
			return threadstate.InnerEvent{Kind: "message", Subtype: "message_deleted", Channel: env.Event.Channel, TargetTS: targetTS}
		default:
			return threadstate.InnerEvent{
				Kind:     "message",
				Channel:  env.Event.Channel,
				TS:       env.Event.TS,
				ThreadTS: env.Event.ThreadTS,
				User:     env.Event.User,
				Text:     env.Event.Text,
			}
		}
	case "reaction_added", "reaction_removed":
		targetTS := ""
		channel := env.Event.Channel
		if env.Event.Item != nil {
			targetTS = env.Event.Item.TS
			if env.Event.Item.Channel != "" {
				channel = env.Event.Item.Channel
			}
		}
		return threadstate.InnerEvent{Kind: env.Event.Type, Channel: channel, TargetTS: targetTS, ReactionName: env.Event.Reaction}
	default:
		return threadstate.InnerEvent{}
	}
}

// routingSignal is the text/reaction pair bus.Route inspects to
// classify a message event as hot or standard.
func routingSignal(env Envelope) (text, reactionName string) {
	text = env.Event.Text
	for _, r := range env.Event.Reactions {
		if r.Name == "rotating_light" {
			return text, "rotating_light"
		}
	}
	if env.Event.Type == "reaction_added" {
		return text, env.Event.Reaction
	}
	return text, ""
}

// Result is what Ingest reports: either a fresh event was queued, or it
// was a dedupe no-op.
type Result struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

// Ingestor wires the store (dedupe + raw-event provenance) to the event
// bus (routing + enqueue).
type Ingestor struct {
	store *store.Store
	bus   bus.EventBus
}

// New constructs an Ingestor.
func New(s *store.Store, b bus.EventBus) *Ingestor {
	return &Ingestor{store: s, bus: b}
}

// Ingest applies dedupe, persists raw provenance, and routes the event
// onto forceQueue if given, else onto bus.Route's classification.
func (ing *Ingestor) Ingest(env Envelope, forceQueue string) (Result, error) {
	inserted, err := ing.store.InsertDedupe(env.EventID)
	if err != nil {
		return Result{}, err
	}
	if !inserted {
		return Result{Status: "duplicate", EventID: env.EventID}, nil
	}

	payloadJSON, err := json.Marshal(env)
	if err != nil {
		return Result{}, err
	}
	if err := ing.store.InsertRawEvent(env.EventID, string(payloadJSON)); err != nil {
		return Result{}, err
	}

	queue := forceQueue
	if queue == "" {
		text, reactionName := routingSignal(env)
		queue = bus.Route(text, reactionName)
	}

	var payload map[string]any
	_ = json.Unmarshal(payloadJSON, &payload)
	ing.bus.Publish(bus.Job{Queue: queue, EventID: env.EventID, Payload: payload, EnqueuedAt: time.Now()})

	return Result{Status: "queued", EventID: env.EventID}, nil
}

// ToInnerEvent exposes the envelope-to-reducer-event mapping so the
// worker pool can decode a dequeued job's payload the same way.
func ToInnerEvent(payload map[string]any) threadstate.InnerEvent {
	raw, err := json.Marshal(payload)
	if err != nil {
		return threadstate.InnerEvent{}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return threadstate.InnerEvent{}
	}
	return toInnerEvent(env)
}

// HandleSlackEvents returns the /slack/events HTTP handler: signature
// verification (when enabled), url_verification challenge-echo, then
// Ingest with routing left to bus.Route.
func HandleSlackEvents(ing *Ingestor, signingSecret string, verifyEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}

		if verifyEnabled {
			if signingSecret == "" {
				http.Error(w, "signing secret not configured", http.StatusInternalServerError)
				return
			}
			timestamp := r.Header.Get("X-Slack-Request-Timestamp")
			signature := r.Header.Get("X-Slack-Signature")
			if !VerifySlackSignature(body, timestamp, signature, signingSecret) {
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}
		}

		var probe struct {
			Type      string `json:"type"`
			Challenge string `json:"challenge"`
		}
		if err := json.Unmarshal(body, &probe); err == nil && probe.Type == "url_verification" {
			writeJSON(w, map[string]string{"challenge": probe.Challenge})
			return
		}

		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		result, err := ing.Ingest(env, "")
		if err != nil {
			http.Error(w, "ingest failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, result)
	}
}

// HandleBackfill returns the /backfill HTTP handler: same shape as
// /slack/events but always routed to the backfill queue, and not
// signature-checked (internal replay path).
func HandleBackfill(ing *Ingestor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		result, err := ing.Ingest(env, bus.Backfill)
		if err != nil {
			http.Error(w, "ingest failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, result)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
