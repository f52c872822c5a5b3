package transport

import (
	"testing"
	"time"

	"github.com/amoylab/hublink/internal/common/cnst"
)

func recordEvents(b Binding, names ...string) <-chan Event {
	if len(names) == 0 {
		names = []string{cnst.EventConnect, cnst.EventDisconnect, cnst.EventConnectError, cnst.EventReconnectFailed}
	}
	ch := make(chan Event, 64)
	for _, name := range names {
		b.On(name, func(ev Event) { ch <- ev })
	}
	return ch
}

func waitEvent(t *testing.T, ch <-chan Event, name string) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Name == name {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", name)
			return Event{}
		}
	}
}
