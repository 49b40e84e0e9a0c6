package realtime

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewGoChannel creates the in-process transport shared by every session of one process.
// Publishing blocks until all subscribers acked, so an Emit ack means the message was handled.
func NewGoChannel(log *slog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewSlogLogger(log),
	)
}

// NewInProcess attaches a session to a shared GoChannel. Closing the bus leaves the GoChannel open.
func NewInProcess(pubSub *gochannel.GoChannel, prefix, sessionID string, log *slog.Logger) *Bus {
	return newBus(pubSub, pubSub, false, prefix, sessionID, log)
}
