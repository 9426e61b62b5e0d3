package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// RebuildMsg asks the worker to execute one previously created rebuild.
type RebuildMsg struct {
	Message    string `json:"message"`
	RebuildID  string `json:"rebuild_id"`
	CampaignID string `json:"campaign_id"`
}

// SummaryMsg asks the worker to (re)generate community summaries for a
// campaign.
type SummaryMsg struct {
	Message    string `json:"message"`
	CampaignID string `json:"campaign_id"`
}

// ArchiveMsg asks the worker to archive applied changelog entries older
// than Before.
type ArchiveMsg struct {
	Message    string    `json:"message"`
	CampaignID string    `json:"campaign_id"`
	Before     time.Time `json:"before"`
}

// SummaryScheduler publishes summary jobs onto the summary queue. It is
// how the rebuild pipeline defers summarization off its critical path.
type SummaryScheduler struct {
	ch *amqp091.Channel
}

func NewSummaryScheduler(ch *amqp091.Channel) *SummaryScheduler {
	return &SummaryScheduler{ch: ch}
}

func (s *SummaryScheduler) ScheduleSummaries(_ context.Context, campaignID string) error {
	body, err := json.Marshal(SummaryMsg{
		Message:    "Summaries requested",
		CampaignID: campaignID,
	})
	if err != nil {
		return err
	}
	return PublishFIFO(s.ch, SummaryQueue, body)
}
