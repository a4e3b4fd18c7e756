// Package odlibp2p carries on-demand ordering traffic over libp2p.
//
// Batches are pushed by publishing on a gossipsub topic,
// so every ordering service subscribed to the topic receives them.
// Proposals are pulled from a single configured ordering peer
// using a request-response stream protocol.
//
// A node typically joins the batch topic once with [JoinBatchTopic],
// runs a [Server] in front of its own ordering service,
// and uses a [Client] as its ordering gate's transport.
package odlibp2p
