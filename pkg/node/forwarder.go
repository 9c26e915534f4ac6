package node

import (
	"context"
	"strings"

	"github.com/myriadmesh/myriadmesh/internal/dht"
	"github.com/myriadmesh/myriadmesh/pkg/network"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// adapterForwarder implements router.Forwarder by looking up a next hop's
// known addresses in the routing table, parsing them into tagged network
// addresses, and handing the frame to the Selector to pick the best adapter
// (§4.4, §4.6). It bridges the router's NodeId-addressed world to the
// transport layer's Address-addressed world.
type adapterForwarder struct {
	dht      *dht.DHT
	manager  *network.Manager
	selector *network.Selector
}

func newAdapterForwarder(d *dht.DHT, manager *network.Manager, selector *network.Selector) *adapterForwarder {
	return &adapterForwarder{dht: d, manager: manager, selector: selector}
}

// Forward implements router.Forwarder.
func (f *adapterForwarder) Forward(ctx context.Context, nextHop wire.NodeId, frame *wire.Frame) error {
	msg, err := frame.ToMessage()
	if err != nil {
		return err
	}

	info := f.dht.RoutingTable().Get(nextHop)
	if info == nil {
		return wire.NewRoutingError(wire.CodeNoRoute, "next hop not present in routing table")
	}

	var lastErr error
	for _, raw := range info.Addresses {
		addr, perr := parseAddress(raw)
		if perr != nil {
			lastErr = perr
			continue
		}
		_, adapter, serr := f.selector.Select(addr, msg.Priority)
		if serr != nil {
			lastErr = serr
			continue
		}
		if err := adapter.Send(ctx, addr, frame); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = wire.NewNetworkError(wire.CodeNoCommonAdapter, "next hop has no usable addresses")
	}
	return lastErr
}

// parseAddress parses the "type:value" textual form network.Address.String
// produces back into a structured Address.
func parseAddress(raw string) (network.Address, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return network.Address{}, wire.NewNetworkError(wire.CodeAdapterNotFound, "malformed address: "+raw)
	}
	return network.Address{Type: parseAdapterType(parts[0]), Value: parts[1]}, nil
}

func parseAdapterType(s string) network.AdapterType {
	switch s {
	case "ethernet":
		return network.AdapterTypeEthernet
	case "bluetooth":
		return network.AdapterTypeBluetooth
	case "cellular":
		return network.AdapterTypeCellular
	case "lorawan":
		return network.AdapterTypeLoRaWAN
	case "radio":
		return network.AdapterTypeRadio
	case "overlay":
		return network.AdapterTypeOverlay
	default:
		return network.AdapterTypeUnknown
	}
}
