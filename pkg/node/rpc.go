package node

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/myriadmesh/myriadmesh/internal/dht"
	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/network"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// peerDTO is the wire-serializable form of dht.NodeInfo exchanged in DHT RPC
// payloads; dht.NodeInfo itself carries no cbor tags since internal/dht has
// no wire-format dependency beyond wire.NodeId (§3, §6).
type peerDTO struct {
	ID        wire.NodeId `cbor:"id"`
	PublicKey []byte      `cbor:"public_key"`
	Addresses []string    `cbor:"addresses"`
}

func toDTO(n *dht.NodeInfo) peerDTO {
	return peerDTO{ID: n.ID, PublicKey: []byte(n.PublicKey), Addresses: n.Addresses}
}

func fromDTO(d peerDTO) *dht.NodeInfo {
	return dht.NewNodeInfo(d.ID, ed25519.PublicKey(d.PublicKey), d.Addresses)
}

type findNodeRequest struct {
	Target wire.NodeId `cbor:"target"`
}

type findNodeResponse struct {
	Closer []peerDTO `cbor:"closer"`
}

type findValueRequest struct {
	Key wire.NodeId `cbor:"key"`
}

type findValueResponse struct {
	Value  []byte    `cbor:"value,omitempty"`
	Closer []peerDTO `cbor:"closer,omitempty"`
}

type storeRequest struct {
	Key       wire.NodeId `cbor:"key"`
	Value     []byte      `cbor:"value"`
	Signature []byte      `cbor:"signature"`
	Publisher wire.NodeId `cbor:"publisher"`
}

type storeResponse struct {
	OK bool `cbor:"ok"`
}

type pingResponse struct {
	OK bool `cbor:"ok"`
}

// DHTClient implements dht.RPCClient over the registered transport
// adapters: each call serializes a request message, selects an adapter
// toward the peer's known addresses, sends it, and blocks on a
// sequence-correlated response channel until one arrives or the DHT RPC
// timeout elapses (§3, §6).
type DHTClient struct {
	localID  wire.NodeId
	signer   wire.Signer
	manager  *network.Manager
	selector *network.Selector

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]chan *wire.Message
}

// NewDHTClient constructs a DHTClient that sends through manager's adapters.
func NewDHTClient(localID wire.NodeId, signer wire.Signer, manager *network.Manager, selector *network.Selector) *DHTClient {
	return &DHTClient{
		localID:  localID,
		signer:   signer,
		manager:  manager,
		selector: selector,
		pending:  make(map[uint64]chan *wire.Message),
	}
}

// Resolve delivers an inbound response message to whichever call is
// awaiting its sequence number, if any. The node's receive pump calls this
// for every inbound DHT response message (§5).
func (c *DHTClient) Resolve(msg *wire.Message) bool {
	c.mu.Lock()
	ch, ok := c.pending[msg.Sequence]
	if ok {
		delete(c.pending, msg.Sequence)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- msg
	return true
}

func (c *DHTClient) nextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *DHTClient) call(ctx context.Context, peer *dht.NodeInfo, msgType wire.MessageType, payload []byte) (*wire.Message, error) {
	seq := c.nextSeq()
	msg := &wire.Message{
		ID:          randomishMessageID(seq),
		Source:      c.localID,
		Destination: peer.ID,
		Type:        msgType,
		Priority:    wire.Priority(160),
		TTL:         1,
		Timestamp:   time.Now().Unix(),
		Sequence:    seq,
		Payload:     payload,
	}
	if c.signer != nil {
		if err := msg.Sign(c.signer); err != nil {
			return nil, err
		}
	}
	frame, err := wire.FromMessage(msg)
	if err != nil {
		return nil, err
	}

	ch := make(chan *wire.Message, 1)
	c.mu.Lock()
	c.pending[seq] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
	}()

	sent := false
	var lastErr error
	for _, raw := range peer.Addresses {
		addr, perr := parseAddress(raw)
		if perr != nil {
			lastErr = perr
			continue
		}
		_, adapter, serr := c.selector.Select(addr, msg.Priority)
		if serr != nil {
			lastErr = serr
			continue
		}
		if err := adapter.Send(ctx, addr, frame); err != nil {
			lastErr = err
			continue
		}
		sent = true
		break
	}
	if !sent {
		if lastErr == nil {
			lastErr = wire.NewNetworkError(wire.CodeNoCommonAdapter, "no usable address for dht peer")
		}
		return nil, lastErr
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DHTRPCTimeout)
	defer cancel()
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, wire.NewDHTError(wire.CodeInsufficientNodes, "dht rpc timed out")
	}
}

// randomishMessageID derives a message ID from seq; it is a copy of the
// construction pkg/network uses for failover heartbeats.
func randomishMessageID(seq uint64) wire.MessageId {
	var id wire.MessageId
	for i := 0; i < 8; i++ {
		id[len(id)-1-i] = byte(seq >> (8 * i))
	}
	return id
}

func (c *DHTClient) FindNode(ctx context.Context, peer *dht.NodeInfo, target wire.NodeId) ([]*dht.NodeInfo, error) {
	payload, err := cbor.Marshal(findNodeRequest{Target: target})
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, peer, wire.MessageTypeDhtFindNode, payload)
	if err != nil {
		return nil, err
	}
	var body findNodeResponse
	if err := cbor.Unmarshal(resp.Payload, &body); err != nil {
		return nil, fmt.Errorf("node: decode find_node response: %w", err)
	}
	out := make([]*dht.NodeInfo, 0, len(body.Closer))
	for _, p := range body.Closer {
		out = append(out, fromDTO(p))
	}
	return out, nil
}

func (c *DHTClient) FindValue(ctx context.Context, peer *dht.NodeInfo, key wire.NodeId) ([]byte, []*dht.NodeInfo, error) {
	payload, err := cbor.Marshal(findValueRequest{Key: key})
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.call(ctx, peer, wire.MessageTypeDhtFindValue, payload)
	if err != nil {
		return nil, nil, err
	}
	var body findValueResponse
	if err := cbor.Unmarshal(resp.Payload, &body); err != nil {
		return nil, nil, fmt.Errorf("node: decode find_value response: %w", err)
	}
	if body.Value != nil {
		return body.Value, nil, nil
	}
	closer := make([]*dht.NodeInfo, 0, len(body.Closer))
	for _, p := range body.Closer {
		closer = append(closer, fromDTO(p))
	}
	return nil, closer, nil
}

func (c *DHTClient) Store(ctx context.Context, peer *dht.NodeInfo, key wire.NodeId, value, signature []byte, publisher wire.NodeId) error {
	payload, err := cbor.Marshal(storeRequest{Key: key, Value: value, Signature: signature, Publisher: publisher})
	if err != nil {
		return err
	}
	resp, err := c.call(ctx, peer, wire.MessageTypeDhtStore, payload)
	if err != nil {
		return err
	}
	var body storeResponse
	if err := cbor.Unmarshal(resp.Payload, &body); err != nil {
		return fmt.Errorf("node: decode store response: %w", err)
	}
	if !body.OK {
		return wire.NewDHTError(wire.CodeStorageFull, "remote rejected store")
	}
	return nil
}

func (c *DHTClient) Ping(ctx context.Context, peer *dht.NodeInfo) error {
	_, err := c.call(ctx, peer, wire.MessageTypeHeartbeat, nil)
	return err
}

var _ dht.RPCClient = (*DHTClient)(nil)
