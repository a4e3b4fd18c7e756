package odgate

import (
	"errors"
	"time"

	"github.com/gordian-engine/gordering/od/odcache"
	"github.com/gordian-engine/gordering/od/odtransport"
	"github.com/gordian-engine/gordering/od/odtypes"
	"github.com/rcrowley/go-metrics"
)

// Config holds the values required to construct a [Gate] with [New].
type Config struct {
	// Round the gate starts in, before any round event arrives.
	InitialRound odtypes.Round

	// Required collaborators.
	Transport       odtransport.Transport
	OrderingService odtransport.OrderingService
	Factory         odtransport.ProposalFactory

	// Round events from the consensus engine.
	// The gate stops when this channel is closed.
	RoundEvents <-chan odtypes.RoundEvent

	// Optional. Defaults to [odcache.NewTwoGen].
	// The gate takes exclusive ownership of the cache.
	Cache odcache.Cache

	// Optional. Defaults to a new, private registry.
	Metrics metrics.Registry

	// Pulls taking longer than this are logged at warn level.
	// Zero uses DefaultSlowPullThreshold;
	// a negative value disables the warning.
	SlowPullThreshold time.Duration

	// Channel buffer size for each subscription.
	// Zero uses DefaultSubscriberBuffer.
	SubscriberBuffer int
}

const (
	DefaultSlowPullThreshold = 2 * time.Second
	DefaultSubscriberBuffer  = 8
)

func (c *Config) validate() error {
	var errs []error

	if c.Transport == nil {
		errs = append(errs, errors.New("transport required"))
	}
	if c.OrderingService == nil {
		errs = append(errs, errors.New("ordering service required"))
	}
	if c.Factory == nil {
		errs = append(errs, errors.New("proposal factory required"))
	}
	if c.RoundEvents == nil {
		errs = append(errs, errors.New("round events channel required"))
	}
	if c.SubscriberBuffer < 0 {
		errs = append(errs, errors.New("subscriber buffer must not be negative"))
	}

	return errors.Join(errs...)
}

func (c *Config) setDefaults() {
	if c.Cache == nil {
		c.Cache = odcache.NewTwoGen()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewRegistry()
	}
	if c.SlowPullThreshold == 0 {
		c.SlowPullThreshold = DefaultSlowPullThreshold
	}
	if c.SubscriberBuffer == 0 {
		c.SubscriberBuffer = DefaultSubscriberBuffer
	}
}
