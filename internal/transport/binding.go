package transport

import "context"

// Binding is a bidirectional, event-multiplexed connection to one bus
// endpoint. It owns connect/disconnect and raw emit/listen only; all
// protocol semantics live above it.
//
// Besides wire events a binding raises the lifecycle events
// cnst.EventConnect, cnst.EventDisconnect, cnst.EventConnectError and
// cnst.EventReconnectFailed.
type Binding interface {
	// Connect starts connecting in the background. It is a no-op while a
	// connection is open or being established.
	Connect(ctx context.Context) error

	// Disconnect closes the connection with cnst.ReasonClientDisconnect and
	// stops automatic reconnection. Connect may be called again afterwards.
	Disconnect()

	// Connected reports whether a connection is currently open.
	Connected() bool

	// SetAuth sets the credential presented on the next handshake.
	SetAuth(token string)

	// Emit sends payload on event. It returns cnst.ErrNotConnected when no
	// connection is open.
	Emit(event string, payload any) error

	// On attaches h to event.
	On(event string, h Handler) ListenerID

	// Once attaches h to event and detaches it after the first delivery.
	Once(event string, h Handler) ListenerID

	// Off detaches a listener. Unknown IDs are ignored.
	Off(event string, id ListenerID)

	// Close disconnects and releases the binding for good.
	Close() error
}
