package cnst

// TransportType names a transport binding implementation.
type TransportType string

const (
	TransportWebSocket TransportType = "websocket"
	TransportRedis     TransportType = "redis"
	TransportMemory    TransportType = "memory"
)

func (s TransportType) String() string {
	return string(s)
}

// DisconnectReason explains why a binding lost its connection.
type DisconnectReason string

const (
	// ReasonServerDisconnect means the remote side closed the session on purpose
	ReasonServerDisconnect DisconnectReason = "io server disconnect"
	// ReasonClientDisconnect means Disconnect was called locally
	ReasonClientDisconnect DisconnectReason = "io client disconnect"
	// ReasonTransportClose means the connection was closed without a server decision
	ReasonTransportClose DisconnectReason = "transport close"
	// ReasonTransportError means the connection failed with a network error
	ReasonTransportError DisconnectReason = "transport error"
	// ReasonPingTimeout means the health check did not answer in time
	ReasonPingTimeout DisconnectReason = "ping timeout"
)

func (r DisconnectReason) String() string {
	return string(r)
}

// Reconnectable reports whether the binding's own reconnection policy
// should take over after a disconnect with this reason.
func (r DisconnectReason) Reconnectable() bool {
	switch r {
	case ReasonServerDisconnect, ReasonClientDisconnect:
		return false
	default:
		return true
	}
}
