// Package threadstate applies inner Slack events to stored messages and
// recomputes thread aggregates from scratch after every mutation.
package threadstate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/scalytics/threadwatch/internal/store"
)

// InnerEvent is the subset of a Slack event_callback's inner event this
// reducer understands. Subtype distinguishes message edits/deletes from
// a plain new message; Kind distinguishes message events from reactions.
type InnerEvent struct {
	Kind         string // "message" or "reaction_added" or "reaction_removed"
	Subtype      string // "", "message_changed", "message_deleted"
	Channel      string
	TS           string
	ThreadTS     string
	User         string
	Text         string
	ReactionName string
	// TargetTS locates the target message (within Channel) for
	// message_changed/message_deleted and reaction events, which carry
	// the edited/reacted-to message's identity rather than a new ts.
	TargetTS string
}

// Apply mutates the message set per ev, then fully recomputes and
// persists the owning thread's aggregate. It returns the thread_ts the
// event resolved to, or "" if the event was discarded for lacking a
// resolvable target.
func Apply(s *store.Store, ev InnerEvent) (string, error) {
	if ev.Channel == "" {
		return "", nil
	}

	threadTS := ev.ThreadTS
	targetTS := ev.TargetTS
	if targetTS == "" {
		targetTS = ev.TS
	}
	if targetTS == "" {
		return "", nil
	}

	switch {
	case ev.Kind == "message" && ev.Subtype == "":
		if threadTS == "" {
			threadTS = ev.TS
		}
		if _, err := s.InsertMessage(store.Message{
			Channel:  ev.Channel,
			TS:       ev.TS,
			ThreadTS: threadTS,
			User:     ev.User,
			Text:     ev.Text,
		}); err != nil {
			return "", fmt.Errorf("threadstate: insert message: %w", err)
		}

	case ev.Kind == "message" && ev.Subtype == "message_changed":
		msg, ok, err := s.FetchMessage(ev.Channel, targetTS)
		if err != nil {
			return "", fmt.Errorf("threadstate: fetch message: %w", err)
		}
		if !ok {
			return "", nil
		}
		threadTS = msg.ThreadTS
		if err := s.UpdateMessageText(ev.Channel, targetTS, ev.Text); err != nil {
			return "", fmt.Errorf("threadstate: update message text: %w", err)
		}

	case ev.Kind == "message" && ev.Subtype == "message_deleted":
		msg, ok, err := s.FetchMessage(ev.Channel, targetTS)
		if err != nil {
			return "", fmt.Errorf("threadstate: fetch message: %w", err)
		}
		if !ok {
			return "", nil
		}
		threadTS = msg.ThreadTS
		if err := s.MarkMessageDeleted(ev.Channel, targetTS); err != nil {
			return "", fmt.Errorf("threadstate: mark message deleted: %w", err)
		}

	case ev.Kind == "reaction_added":
		msg, ok, err := s.FetchMessage(ev.Channel, targetTS)
		if err != nil {
			return "", fmt.Errorf("threadstate: fetch message: %w", err)
		}
		if !ok {
			return "", nil
		}
		threadTS = msg.ThreadTS
		if err := s.UpdateMessageReactions(ev.Channel, targetTS, ev.ReactionName, 1); err != nil {
			return "", fmt.Errorf("threadstate: update reactions: %w", err)
		}

	case ev.Kind == "reaction_removed":
		msg, ok, err := s.FetchMessage(ev.Channel, targetTS)
		if err != nil {
			return "", fmt.Errorf("threadstate: fetch message: %w", err)
		}
		if !ok {
			return "", nil
		}
		threadTS = msg.ThreadTS
		if err := s.UpdateMessageReactions(ev.Channel, targetTS, ev.ReactionName, -1); err != nil {
			return "", fmt.Errorf("threadstate: update reactions: %w", err)
		}

	default:
		return "", nil
	}

	if threadTS == "" {
		return "", nil
	}
	if err := recomputeAggregate(s, ev.Channel, threadTS); err != nil {
		return "", err
	}
	return threadTS, nil
}

// recomputeAggregate rebuilds the thread's reply/reaction counts and
// participant list wholesale from its current message set, so
// out-of-order edits and deletions always converge to a consistent
// aggregate rather than accumulating drift from incremental patches.
func recomputeAggregate(s *store.Store, channel, threadTS string) error {
	messages, err := s.MessagesForThread(threadTS)
	if err != nil {
		return fmt.Errorf("threadstate: load thread messages: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	createdAt, err := strconv.ParseFloat(threadTS, 64)
	if err != nil {
		createdAt = float64(time.Now().UnixNano()) / 1e9
	}

	var lastActivity float64
	var replyCount, reactionCount int
	participantSet := map[string]bool{}
	for _, m := range messages {
		ts, err := strconv.ParseFloat(m.TS, 64)
		if err == nil && ts > lastActivity {
			lastActivity = ts
		}
		if m.TS != threadTS {
			replyCount++
		}
		reactionCount += reactionTotal(m.ReactionsJSON)
		if m.User != "" {
			participantSet[m.User] = true
		}
	}
	participants := make([]string, 0, len(participantSet))
	for u := range participantSet {
		participants = append(participants, u)
	}
	sort.Strings(participants)

	return s.UpsertThread(store.Thread{
		ThreadTS:      threadTS,
		Channel:       channel,
		RootTS:        threadTS,
		CreatedAt:     createdAt,
		LastActivity:  lastActivity,
		ReplyCount:    replyCount,
		ReactionCount: reactionCount,
		Participants:  participants,
	})
}

func reactionTotal(reactionsJSON string) int {
	if reactionsJSON == "" {
		return 0
	}
	var reactions []store.Reaction
	if err := json.Unmarshal([]byte(reactionsJSON), &reactions); err != nil {
		return 0
	}
	total := 0
	for _, r := range reactions {
		total += r.Count
	}
	return total
}

// ThreadText concatenates the non-empty text of every message in a
// thread, in chronological order, for downstream enrichment.
func ThreadText(s *store.Store, threadTS string) (string, []store.Message, error) {
	messages, err := s.MessagesForThread(threadTS)
	if err != nil {
		return "", nil, err
	}
	var parts []string
	for _, m := range messages {
		if m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	text := ""
	for i, p := range parts {
		if i > 0 {
			text += "\n"
		}
		text += p
	}
	return text, messages, nil
}
