// Package facts announces deployment outcomes to subscribers outside the pipeline, such as
// progress tracking or notifications. Publishing is synchronous and in subscription order.
package facts

import (
	"fmt"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

const (
	TopicSucceeded = "deployment:succeeded"
	TopicFailed    = "deployment:failed"
)

// DeploymentSucceeded is published once per session that reaches DONE.
type DeploymentSucceeded struct {
	SessionID       uuid.UUID
	ChainSelector   uint64
	ContractName    string
	ContractAddress common.Address
	TxHash          common.Hash
	Simulated       bool
	At              time.Time
}

// DeploymentFailed is published once per session that ends without a deployed contract.
type DeploymentFailed struct {
	SessionID     uuid.UUID
	ChainSelector uint64
	ContractName  string
	Stage         string
	Reason        string
	Abandoned     bool
	Simulated     bool
	At            time.Time
}

// Bus fans deployment facts out to subscribers. A nil *Bus drops everything it is given.
type Bus struct {
	bus evbus.Bus
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

// PublishSucceeded delivers f to every OnSucceeded subscriber.
func (b *Bus) PublishSucceeded(f DeploymentSucceeded) {
	if b == nil {
		return
	}
	b.bus.Publish(TopicSucceeded, f)
}

// PublishFailed delivers f to every OnFailed subscriber.
func (b *Bus) PublishFailed(f DeploymentFailed) {
	if b == nil {
		return
	}
	b.bus.Publish(TopicFailed, f)
}

// OnSucceeded subscribes fn to successful deployments.
func (b *Bus) OnSucceeded(fn func(DeploymentSucceeded)) error {
	if err := b.bus.Subscribe(TopicSucceeded, fn); err != nil {
		return fmt.Errorf("subscribe to %s: %w", TopicSucceeded, err)
	}

	return nil
}

// OnFailed subscribes fn to failed and abandoned deployments.
func (b *Bus) OnFailed(fn func(DeploymentFailed)) error {
	if err := b.bus.Subscribe(TopicFailed, fn); err != nil {
		return fmt.Errorf("subscribe to %s: %w", TopicFailed, err)
	}

	return nil
}
