package odlibp2p

import (
	"fmt"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/protocol"
)

const (
	// BatchTopic is the gossipsub topic batches are pushed on.
	BatchTopic = "gordering/batches/1"

	// ProposalProtocolID is the stream protocol for proposal requests.
	ProposalProtocolID protocol.ID = "/gordering/proposal/1.0.0"

	// Upper bound on a single encoded message read from a stream.
	maxMessageSize = 16 << 20
)

// JoinBatchTopic joins [BatchTopic] on ps.
// A PubSub instance may only join a topic once,
// so the returned topic must be shared between a node's [Client] and [Server].
func JoinBatchTopic(ps *pubsub.PubSub) (*pubsub.Topic, error) {
	t, err := ps.Join(BatchTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to join topic %q: %w", BatchTopic, err)
	}
	return t, nil
}
