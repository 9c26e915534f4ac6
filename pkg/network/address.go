// Package network implements the transport adapter abstraction (§4.5),
// adapter-selection scoring (§4.6), and failover/heartbeat supervision
// (§4.7) that let a node move traffic across Ethernet, Bluetooth, cellular,
// LoRaWAN, radio and overlay transports through one uniform contract.
package network

import "fmt"

// AdapterType enumerates the transport families a node may register.
type AdapterType uint8

const (
	AdapterTypeUnknown AdapterType = iota
	AdapterTypeEthernet
	AdapterTypeBluetooth
	AdapterTypeCellular
	AdapterTypeLoRaWAN
	AdapterTypeRadio
	AdapterTypeOverlay
)

func (t AdapterType) String() string {
	switch t {
	case AdapterTypeEthernet:
		return "ethernet"
	case AdapterTypeBluetooth:
		return "bluetooth"
	case AdapterTypeCellular:
		return "cellular"
	case AdapterTypeLoRaWAN:
		return "lorawan"
	case AdapterTypeRadio:
		return "radio"
	case AdapterTypeOverlay:
		return "overlay"
	default:
		return "unknown"
	}
}

// Address is a tagged-union transport address: its meaning (hostname:port,
// a Bluetooth MAC, a LoRaWAN device address, an overlay destination, ...) is
// defined entirely by Type, with Value left as the transport's own string
// form (§4.5).
type Address struct {
	Type  AdapterType `cbor:"type"`
	Value string      `cbor:"value"`
}

// String renders the address as "type:value".
func (a Address) String() string {
	return fmt.Sprintf("%s:%s", a.Type, a.Value)
}

// IsZero reports whether the address carries no information.
func (a Address) IsZero() bool {
	return a.Type == AdapterTypeUnknown && a.Value == ""
}
