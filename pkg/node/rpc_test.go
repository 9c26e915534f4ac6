package node

import (
	"context"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myriadmesh/myriadmesh/internal/dht"
	"github.com/myriadmesh/myriadmesh/pkg/crypto"
	"github.com/myriadmesh/myriadmesh/pkg/network"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

func TestDHTClient_FindNode_RoundTrip(t *testing.T) {
	clientID := peerID(1)
	serverID := peerID(2)

	manager := network.NewManager()
	selector := network.NewSelector(manager)

	clientAddr := network.Address{Type: network.AdapterTypeEthernet, Value: "10.0.0.1:9000"}
	serverAddr := network.Address{Type: network.AdapterTypeEthernet, Value: "10.0.0.2:9000"}
	clientAdapter := newFakeAdapter("client-eth", network.AdapterTypeEthernet, clientAddr)
	serverAdapter := newFakeAdapter("server-eth", network.AdapterTypeEthernet, serverAddr)
	link(clientAdapter, serverAdapter)
	require.NoError(t, manager.RegisterAdapter(context.Background(), "client-eth", clientAdapter))

	identity, err := crypto.GenerateIdentity()
	require.NoError(t, err)

	client := NewDHTClient(clientID, identity, manager, selector)

	serverDHT := dht.New(serverID, nil, nil)
	known := dht.NewNodeInfo(peerID(3), nil, []string{"ethernet:10.0.0.3:9000"})
	serverDHT.AddNode(known)

	serverPeer := dht.NewNodeInfo(serverID, nil, []string{serverAddr.String()})

	go func() {
		_, frame, err := serverAdapter.Receive(context.Background(), time.Second)
		if err != nil {
			return
		}
		msg, err := frame.ToMessage()
		if err != nil {
			return
		}
		if msg.Type != wire.MessageTypeDhtFindNode {
			return
		}
		respMsg := &wire.Message{
			ID:          msg.ID,
			Source:      serverID,
			Destination: msg.Source,
			Type:        wire.MessageTypeDhtFindNodeResponse,
			Sequence:    msg.Sequence,
			Timestamp:   msg.Timestamp,
			Payload:     findNodeResponsePayload(t, known),
		}
		respFrame, err := wire.FromMessage(respMsg)
		if err != nil {
			return
		}
		_ = serverAdapter.Send(context.Background(), clientAddr, respFrame)
	}()

	go func() {
		_, frame, err := clientAdapter.Receive(context.Background(), 2*time.Second)
		if err != nil {
			return
		}
		if msg, err := frame.ToMessage(); err == nil {
			client.Resolve(msg)
		}
	}()

	results, err := client.FindNode(context.Background(), serverPeer, peerID(3))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, known.ID, results[0].ID)
}

func TestDHTClient_Resolve_UnknownSequenceIsNoop(t *testing.T) {
	manager := network.NewManager()
	selector := network.NewSelector(manager)
	identity, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	client := NewDHTClient(peerID(1), identity, manager, selector)

	msg := &wire.Message{ID: msgID(1), Sequence: 999}
	assert.False(t, client.Resolve(msg))
}

func TestDHTClient_Ping_NoReachablePeerErrors(t *testing.T) {
	manager := network.NewManager()
	selector := network.NewSelector(manager)
	identity, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	client := NewDHTClient(peerID(1), identity, manager, selector)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	peer := dht.NewNodeInfo(peerID(2), nil, []string{"ethernet:10.0.0.9:9000"})
	err = client.Ping(ctx, peer)
	assert.Error(t, err)
}

func findNodeResponsePayload(t *testing.T, nodes ...*dht.NodeInfo) []byte {
	t.Helper()
	dtos := make([]peerDTO, 0, len(nodes))
	for _, n := range nodes {
		dtos = append(dtos, toDTO(n))
	}
	payload, err := cbor.Marshal(findNodeResponse{Closer: dtos})
	require.NoError(t, err)
	return payload
}
