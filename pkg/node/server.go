package node

import (
	"context"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/myriadmesh/myriadmesh/internal/dht"
	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/router"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// requestServer answers inbound DHT RPCs (§3) and hands everything else to
// the router's Ingress path. It is the receive-side counterpart of
// DHTClient: DHTClient issues requests, requestServer answers them.
type requestServer struct {
	localID wire.NodeId
	dht     *dht.DHT
	router  *router.Router
	client  *DHTClient
	signer  wire.Signer
}

func newRequestServer(localID wire.NodeId, d *dht.DHT, r *router.Router, client *DHTClient, signer wire.Signer) *requestServer {
	return &requestServer{localID: localID, dht: d, router: r, client: client, signer: signer}
}

// HandleFrame dispatches one inbound frame: DHT RPC requests are answered
// directly, DHT RPC responses are resolved against a pending DHTClient
// call, and everything else is handed to the router.
func (s *requestServer) HandleFrame(ctx context.Context, frame *wire.Frame) error {
	msg, err := frame.ToMessage()
	if err != nil {
		return err
	}

	switch msg.Type {
	case wire.MessageTypeDhtFindNode:
		return s.handleFindNode(ctx, msg)
	case wire.MessageTypeDhtFindValue:
		return s.handleFindValue(ctx, msg)
	case wire.MessageTypeDhtStore:
		return s.handleStore(ctx, msg)
	case wire.MessageTypeDhtFindNodeResponse, wire.MessageTypeDhtFindValueResponse, wire.MessageTypeDhtStoreResponse:
		s.client.Resolve(msg)
		return nil
	case wire.MessageTypeHeartbeat:
		if msg.Sequence != 0 {
			s.client.Resolve(msg)
		}
		if info := s.dht.RoutingTable().Get(msg.Source); info != nil {
			info.Touch()
		}
		return nil
	default:
		return s.router.Ingress(ctx, frame)
	}
}

func (s *requestServer) reply(msg *wire.Message, msgType wire.MessageType, payload []byte) *wire.Message {
	reply := &wire.Message{
		ID:          msg.ID,
		Source:      s.localID,
		Destination: msg.Source,
		Type:        msgType,
		Priority:    msg.Priority,
		TTL:         1,
		Timestamp:   msg.Timestamp,
		Sequence:    msg.Sequence,
		Payload:     payload,
	}
	if s.signer != nil {
		_ = reply.Sign(s.signer)
	}
	return reply
}

func (s *requestServer) handleFindNode(ctx context.Context, msg *wire.Message) error {
	var req findNodeRequest
	if err := cbor.Unmarshal(msg.Payload, &req); err != nil {
		return err
	}
	closest := s.dht.RoutingTable().FindClosestNodes(req.Target, constants.KBucketSize)
	dtos := make([]peerDTO, 0, len(closest))
	for _, n := range closest {
		dtos = append(dtos, toDTO(n))
	}
	payload, err := cbor.Marshal(findNodeResponse{Closer: dtos})
	if err != nil {
		return err
	}
	return s.sendReply(ctx, s.reply(msg, wire.MessageTypeDhtFindNodeResponse, payload))
}

func (s *requestServer) handleFindValue(ctx context.Context, msg *wire.Message) error {
	var req findValueRequest
	if err := cbor.Unmarshal(msg.Payload, &req); err != nil {
		return err
	}
	var body findValueResponse
	if value, ok := s.dht.Storage().Get(req.Key); ok {
		body.Value = value
	} else {
		closest := s.dht.RoutingTable().FindClosestNodes(req.Key, constants.KBucketSize)
		for _, n := range closest {
			body.Closer = append(body.Closer, toDTO(n))
		}
	}
	payload, err := cbor.Marshal(body)
	if err != nil {
		return err
	}
	return s.sendReply(ctx, s.reply(msg, wire.MessageTypeDhtFindValueResponse, payload))
}

func (s *requestServer) handleStore(ctx context.Context, msg *wire.Message) error {
	var req storeRequest
	if err := cbor.Unmarshal(msg.Payload, &req); err != nil {
		return err
	}
	ttl := time.Duration(constants.DefaultMessageTTLDays) * 24 * time.Hour
	err := s.dht.Storage().Put(req.Key, req.Value, req.Signature, req.Publisher, nil, time.Now().Add(ttl))
	payload, merr := cbor.Marshal(storeResponse{OK: err == nil})
	if merr != nil {
		return merr
	}
	return s.sendReply(ctx, s.reply(msg, wire.MessageTypeDhtStoreResponse, payload))
}

// sendReply routes a response back toward its destination through the
// router's own outbound path, reusing the same forwarding/selection logic
// as any other outbound message.
func (s *requestServer) sendReply(ctx context.Context, reply *wire.Message) error {
	return s.router.SendLocal(ctx, reply)
}
