package fraud

import (
	"context"
	"time"

	"github.com/verigrade/verigrade/pkg/eventbus"
)

const eventSource = "fraud-service"

// BusPublisher publishes alert events on the event bus
type BusPublisher struct {
	bus *eventbus.Bus
}

// NewBusPublisher creates a publisher. A nil bus makes every publish a no-op.
func NewBusPublisher(bus *eventbus.Bus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

// PublishFraudDetected announces a new alert on fraud.detected
func (p *BusPublisher) PublishFraudDetected(ctx context.Context, alert *RiskAlert) error {
	return p.publish(ctx, eventbus.SubjectFraudDetected, eventbus.FraudDetectedData{
		AlertID:       alert.ID,
		UserID:        alert.UserID,
		TransactionID: alert.TransactionID,
		RiskScore:     alert.RiskScore,
		Severity:      string(alert.RiskLevel),
		FraudType:     alert.FraudType,
		Indicators:    alert.Indicators,
		DetectedAt:    alert.CreatedAt,
	})
}

// PublishStatusChanged announces a review status change
func (p *BusPublisher) PublishStatusChanged(ctx context.Context, alert *RiskAlert, from AlertStatus) error {
	return p.publish(ctx, eventbus.SubjectFraudAlertStatusChanged, eventbus.FraudAlertStatusChangedData{
		AlertID:   alert.ID,
		UserID:    alert.UserID,
		From:      string(from),
		To:        string(alert.Status),
		ChangedAt: alert.UpdatedAt,
	})
}

func (p *BusPublisher) publish(ctx context.Context, subject string, data interface{}) error {
	if p == nil || p.bus == nil {
		return nil
	}

	event, err := eventbus.NewEvent(subject, eventSource, data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.bus.Publish(ctx, subject, event)
}
