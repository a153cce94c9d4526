package simulator

import (
	"errors"
	"fmt"

	"github.com/scalytics/threadwatch/internal/ingest"
)

// ErrUnknownScenario is returned for any scenario_id the dataset
// doesn't recognize.
var ErrUnknownScenario = errors.New("unknown_scenario")

// Clock hands out strictly increasing Slack-style timestamps, one
// second apart, starting from a fixed epoch so replayed scenarios are
// byte-for-byte reproducible across runs.
type Clock struct {
	current float64
}

// NewClock constructs a Clock starting at the dataset's fixed epoch.
func NewClock() *Clock {
	return &Clock{current: 1700000000.0}
}

// Tick returns the current timestamp and advances the clock by one
// second.
func (c *Clock) Tick() float64 {
	v := c.current
	c.current++
	return v
}

func tsString(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

// carbonFiberDemo replays the carbon-fiber/aluminum material-change
// decision scenario: four threads across two channels, a
// rotating_light reaction marking the decision thread hot, and a
// message_changed edit to the supply-chain thread's MOQ.
func carbonFiberDemo(clock *Clock) []ingest.Envelope {
	var events []ingest.Envelope
	idx := 0

	emitMessage := func(channel, user, text string, threadTS float64) float64 {
		ts := clock.Tick()
		if threadTS == 0 {
			threadTS = ts
		}
		events = append(events, ingest.Envelope{
			EventID: fmt.Sprintf("EvM%04d", idx),
			TeamID:  "T_DEMO",
			Type:    "event_callback",
			Event: ingest.InnerPayload{
				Type:     "message",
				Channel:  channel,
				User:     user,
				Text:     text,
				TS:       tsString(ts),
				ThreadTS: tsString(threadTS),
			},
		})
		idx++
		return ts
	}
	emitReaction := func(channel, reaction string, itemTS float64) {
		ts := clock.Tick()
		events = append(events, ingest.Envelope{
			EventID: fmt.Sprintf("EvR%04d", idx),
			TeamID:  "T_DEMO",
			EventTS: tsString(ts),
			Type:    "event_callback",
			Event: ingest.InnerPayload{
				Type:     "reaction_added",
				Reaction: reaction,
				Item:     &ingest.ItemRef{Channel: channel, TS: tsString(itemTS)},
			},
		})
		idx++
	}
	emitEdit := func(channel string, ts, threadTS float64, text string) {
		clock.Tick()
		events = append(events, ingest.Envelope{
			EventID: fmt.Sprintf("EvE%04d", idx),
			TeamID:  "T_DEMO",
			Type:    "event_callback",
			Event: ingest.InnerPayload{
				Type:    "message",
				Subtype: "message_changed",
				Channel: channel,
				Message: &ingest.NestedMessage{TS: tsString(ts), Text: text},
			},
		})
		idx++
	}

	// Thread 1: material change proposal, EVT build at risk.
	thread1 := emitMessage("C_DRONE_STRUCT", "U_MAYA",
		"Aluminum bracket reacts with solvent X. Proposing carbon fiber for Rev C. Decision needed by Friday or EVT build slips.",
		0)
	emitMessage("C_DRONE_STRUCT", "U_MAYA",
		"ME note: carbon fiber saves 120g but tooling cost is higher.",
		thread1)
	emitMessage("C_DRONE_STRUCT", "U_PRIYA",
		"PM: if we miss Friday, EVT build schedule slips by 2 weeks.",
		thread1)
	emitReaction("C_DRONE_STRUCT", "rotating_light", thread1)

	// Thread 2: supply chain lead time.
	thread2 := emitMessage("C_DRONE_SUPPLY", "U_SAM",
		"Supply chain: Vendor A lead time 8 weeks, MOQ 500. Vendor B can do 6 weeks but higher cost.",
		0)
	emitMessage("C_DRONE_SUPPLY", "U_SAM",
		"Sourcing risk: carbon fiber fabric constrained. Alternative vendor C available.",
		thread2)

	// Thread 3: RF test risk.
	emitMessage("C_DRONE_STRUCT", "U_MAYA",
		"RF test risk: carbon fiber near antenna mount could worsen RF; need test before DVT.",
		0)

	// Thread 4: build schedule / action items.
	thread4 := emitMessage("C_DRONE_STRUCT", "U_PRIYA",
		"Build schedule: decision review tomorrow 2pm; owners Maya and Sam; action list pending.",
		0)
	emitMessage("C_DRONE_STRUCT", "U_PRIYA",
		"Action items: update BOM, confirm vendor quotes, lock EVT build plan.",
		thread4)

	// Edit thread 2's root message to reflect an updated MOQ.
	emitEdit("C_DRONE_SUPPLY", thread2, thread2,
		"Supply chain: Vendor A lead time 8 weeks, MOQ 600. Vendor B can do 6 weeks but higher cost.")

	return events
}

// ScenarioEvents returns the full canned event sequence for scenarioID.
func ScenarioEvents(scenarioID string, clock *Clock) ([]ingest.Envelope, error) {
	switch scenarioID {
	case "carbon_fiber_demo":
		return carbonFiberDemo(clock), nil
	default:
		return nil, ErrUnknownScenario
	}
}
