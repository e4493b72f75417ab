// Package gochannel carries execution events and billing notifications
// between goroutines of a single hesab process.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const defaultBuffer = 1000

// Option adjusts the pub/sub before it is created.
type Option func(*gochannel.Config)

// WithReplay keeps every message for subscribers that attach late and makes
// Publish wait until each subscriber acked. Tests use it to observe events
// published before they subscribed.
func WithReplay() Option {
	return func(c *gochannel.Config) {
		c.Persistent = true
		c.BlockPublishUntilSubscriberAck = true
		c.OutputChannelBuffer = 16
	}
}

// WithBuffer sets how many messages a slow subscriber may lag behind.
func WithBuffer(n int64) Option {
	return func(c *gochannel.Config) { c.OutputChannelBuffer = n }
}

// New returns one GoChannel acting as both publisher and subscriber.
// Messages published with no subscriber attached are dropped unless
// WithReplay is set.
func New(logger watermill.LoggerAdapter, opts ...Option) (*gochannel.GoChannel, *gochannel.GoChannel) {
	cfg := gochannel.Config{OutputChannelBuffer: defaultBuffer}

	for _, opt := range opts {
		opt(&cfg)
	}

	pubSub := gochannel.NewGoChannel(cfg, logger)

	return pubSub, pubSub
}
