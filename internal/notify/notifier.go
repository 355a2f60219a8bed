// Package notify pushes pending-acceptance alerts to the organization that
// must act next. The quick-accept UIs consume the queue to surface segments
// awaiting the caller, pre-filtered by area.
package notify

import (
	"context"
	"encoding/json"

	"github.com/trackchain/custody-service/internal/models"
	"github.com/trackchain/custody-service/pkg/logger"
	"github.com/trackchain/custody-service/pkg/rabbitmq"
)

// Notifier is what the planner and custody machine depend on.
type Notifier interface {
	SegmentPending(ctx context.Context, seg models.Segment) error
}

// pendingSegmentMessage is the queue payload.
type pendingSegmentMessage struct {
	SegmentID         string `json:"segment_id"`
	ShipmentID        string `json:"shipment_id"`
	Order             int    `json:"order"`
	OwnerOrgID        string `json:"owner_org_id"`
	StartCheckpointID string `json:"start_checkpoint_id"`
	EndCheckpointID   string `json:"end_checkpoint_id"`
	ExpectedShipDate  string `json:"expected_ship_date"`
}

// AMQPNotifier publishes to a durable RabbitMQ queue.
type AMQPNotifier struct {
	client *rabbitmq.Client
	queue  string
	log    logger.Logger
}

func NewAMQPNotifier(client *rabbitmq.Client, queue string, log logger.Logger) (*AMQPNotifier, error) {
	if err := client.CreateQueue(queue); err != nil {
		return nil, err
	}
	return &AMQPNotifier{client: client, queue: queue, log: log}, nil
}

func (n *AMQPNotifier) SegmentPending(ctx context.Context, seg models.Segment) error {
	body, err := json.Marshal(pendingSegmentMessage{
		SegmentID:         seg.ID.String(),
		ShipmentID:        seg.ShipmentID.String(),
		Order:             seg.Order,
		OwnerOrgID:        seg.OwnerOrgID.String(),
		StartCheckpointID: seg.StartCheckpointID.String(),
		EndCheckpointID:   seg.EndCheckpointID.String(),
		ExpectedShipDate:  seg.ExpectedShipDate.Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.queue, body); err != nil {
		n.log.Error("failed to publish pending-segment notification", "segment_id", seg.ID, "error", err)
		return err
	}
	return nil
}

// NopNotifier drops notifications, for tests and deployments without RabbitMQ.
type NopNotifier struct{}

func (NopNotifier) SegmentPending(ctx context.Context, seg models.Segment) error { return nil }
