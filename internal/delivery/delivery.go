// Package delivery sends a built digest to its owner over Slack DM and
// records the attempt, short-circuiting on duplicate delivery of the
// same digest.
package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/slack-go/slack"

	"github.com/scalytics/threadwatch/internal/digest"
	"github.com/scalytics/threadwatch/internal/slackapi"
	"github.com/scalytics/threadwatch/internal/store"
)

// Result mirrors the original's deliver_digest return shape.
type Result struct {
	Status     string `json:"status"`
	DeliveryID string `json:"delivery_id"`
	SlackTS    string `json:"slack_ts,omitempty"`
}

const (
	statusDuplicate = "duplicate"
	statusDelivered = "delivered"
	statusFailed    = "failed"
)

func formatMessage(items []digest.Item) string {
	lines := []string{"Daily Digest"}
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = "Untitled"
		}
		lines = append(lines, fmt.Sprintf("• %s — %s", title, item.WhyShown))
	}
	return strings.Join(lines, "\n")
}

func formatBlocks(items []digest.Item) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "*Daily Digest*", false, false), nil, nil),
	}
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = "Untitled"
		}
		text := fmt.Sprintf("• *%s*\n_%s_", title, item.WhyShown)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil))
	}
	return blocks
}

// DeliverDigest posts digestID's items to userID's Slack DM in teamID,
// recording the outcome. scheduleID is optional ("" for a manual
// delivery not tied to a schedule).
func DeliverDigest(ctx context.Context, s *store.Store, slackClient *slackapi.Client, scheduleID, digestID, teamID, userID string, items []digest.Item) (Result, error) {
	if existing, ok, err := s.FetchDeliveryByDigest(digestID); err != nil {
		return Result{}, err
	} else if ok {
		return Result{Status: statusDuplicate, DeliveryID: existing.DeliveryID}, nil
	}

	deliveryID := "del-" + strings.ReplaceAll(uuid.New().String(), "-", "")
	message := formatMessage(items)
	blocks := formatBlocks(items)

	channelID, err := slackClient.OpenDM(ctx, teamID, userID)
	if err != nil {
		return recordFailure(s, deliveryID, digestID, scheduleID, teamID, userID, err)
	}

	slackTS, err := slackClient.PostMessage(ctx, teamID, channelID, message, blocks...)
	if err != nil {
		return recordFailure(s, deliveryID, digestID, scheduleID, teamID, userID, err)
	}

	if err := s.InsertDelivery(store.Delivery{
		DeliveryID: deliveryID,
		DigestID:   digestID,
		ScheduleID: scheduleID,
		TeamID:     teamID,
		UserID:     userID,
		Status:     statusDelivered,
		SlackTS:    slackTS,
	}); err != nil {
		return Result{}, err
	}
	return Result{Status: statusDelivered, DeliveryID: deliveryID, SlackTS: slackTS}, nil
}

func recordFailure(s *store.Store, deliveryID, digestID, scheduleID, teamID, userID string, cause error) (Result, error) {
	if err := s.InsertDelivery(store.Delivery{
		DeliveryID: deliveryID,
		DigestID:   digestID,
		ScheduleID: scheduleID,
		TeamID:     teamID,
		UserID:     userID,
		Status:     statusFailed,
		Error:      cause.Error(),
	}); err != nil {
		return Result{}, err
	}
	return Result{Status: statusFailed, DeliveryID: deliveryID}, nil
}
