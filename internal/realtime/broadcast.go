package realtime

import (
	"context"

	"github.com/coder/websocket"
	apierrors "github.com/openforum/backend/internal/errors"
	"github.com/openforum/backend/internal/logger"
	"github.com/openforum/backend/internal/metrics"
	"go.uber.org/zap"
)

// DeliveryReport records the outcome of one broadcast
type DeliveryReport struct {
	Delivered []*Conn
	Failed    []*Conn
}

// Broadcaster fans an envelope out to every live connection in a room.
// Per-recipient failures are isolated: a dead socket never aborts
// delivery to the remaining members, and is removed from the registry
// without waiting for its own disconnect handler (self-healing).
type Broadcaster struct {
	registry *Registry
}

// NewBroadcaster creates a broadcaster over the given registry
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast delivers the envelope to a snapshot of the room's members.
// Every recipient receives byte-identical frames.
func (b *Broadcaster) Broadcast(ctx context.Context, room Room, env *Envelope) (*DeliveryReport, error) {
	data, err := encodeMessageFrame(env)
	if err != nil {
		return nil, err
	}

	m := metrics.Get()
	report := &DeliveryReport{}

	for _, member := range b.registry.Members(room) {
		if err := member.Send(ctx, data); err != nil {
			report.Failed = append(report.Failed, member)
			m.WSDeliveryFailures.WithLabelValues(string(room.Kind)).Inc()
			m.ErrorsTotal.WithLabelValues(string(apierrors.ErrTransport)).Inc()

			logger.Warn("broadcast delivery failed, removing member",
				logger.WithRoomID(room.String()),
				zap.String("message_id", env.ID),
				zap.Error(err),
			)

			// Self-healing membership: evict the dead connection now
			b.registry.Leave(room, member)
			member.close(websocket.StatusAbnormalClosure, "delivery failed")
			continue
		}
		report.Delivered = append(report.Delivered, member)
		m.WSMessagesOut.WithLabelValues(string(room.Kind)).Inc()
	}

	return report, nil
}
