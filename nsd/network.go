package nsd

import (
	"strconv"

	"github.com/nsdservice/nsdd/internal/registry"
)

// Network identifies a link the socket provider reports on, by the opaque
// netId the backends hand back in callbacks (§3, §4.6).
type Network = registry.Network

// Netid sentinels shared by both backends' event lowering (§4.6).
const (
	NetIDUnset      int64 = 0
	NetIDLocalDummy int64 = -1
)

// LinkPropertyProvider resolves a requested Network to the interface index
// needed to issue a backend operation (§4.6 "resolve it to an interface
// index by consulting the link-property provider"). It is an external
// collaborator — the core only consumes it through this interface.
type LinkPropertyProvider interface {
	InterfaceIndexForNetwork(net *Network) (int, bool)
}

// resolveInterfaceIndex consults the link-property provider for a request's
// requested network, failing the caller immediately when none is configured
// or the provider doesn't recognize the network (§4.6 "resolve it to an
// interface index by consulting the link-property provider; if none, fail
// immediately").
func (m *Machine) resolveInterfaceIndex(net *Network) (int, bool) {
	if m.linkProvider == nil {
		return 0, false
	}
	return m.linkProvider.InterfaceIndexForNetwork(net)
}

// attributeNetwork applies the netId-to-(Network, ifaceIndex) rewrite rule
// every outbound callback carrying a netId goes through (§4.6):
//   - NetIDUnset clears both network and interface index;
//   - the local-network sentinel clears the network but keeps ifaceIndex,
//     so a caller re-submitting the info can still target the same link;
//   - any other netId attaches Network(netId) unchanged.
func attributeNetwork(netID int64, ifaceIndex int) (*Network, int) {
	switch netID {
	case NetIDUnset:
		return nil, 0
	case NetIDLocalDummy:
		return nil, ifaceIndex
	default:
		n := registry.Network{ID: netID}
		return &n, ifaceIndex
	}
}

// networkKey renders a requested Network into the opaque interfaceName an
// offload engine registers against (§4.8); nil ("any network") keys to "".
func networkKey(n *Network) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(n.ID, 10)
}

// discardDiscoveryEvent reports whether a legacy SERVICE_FOUND/LOST event
// carrying netID must be dropped rather than attributed (§4.4 "Service-
// event filtering"): no backing network, or the local-advertisement
// loopback sentinel.
func discardDiscoveryEvent(netID int64) bool {
	return netID == NetIDUnset || netID == NetIDLocalDummy
}
