package ws

import "sync/atomic"

// ConnState represents the current connection state of a websocket.
type ConnState int32

// Connection states for websocket lifecycle management.
const (
	// StateDisconnected indicates the websocket is not connected.
	StateDisconnected ConnState = iota
	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting
	// StateConnected indicates an active connection.
	StateConnected
	// StateReconnecting indicates a reconnect attempt after a disconnect.
	StateReconnecting
	// StateClosed indicates the websocket has been permanently closed.
	StateClosed
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	return [...]string{
		"disconnected",
		"connecting",
		"connected",
		"reconnecting",
		"closed",
	}[s]
}

// State provides thread-safe atomic access to a ConnState value.
type State struct {
	state atomic.Int32
}

// Load returns the current connection state.
func (s *State) Load() ConnState {
	return ConnState(s.state.Load())
}

// Store sets the connection state.
func (s *State) Store(state ConnState) {
	s.state.Store(int32(state))
}

// CompareAndSwap atomically swaps old for new, reporting success.
func (s *State) CompareAndSwap(old, new ConnState) bool {
	return s.state.CompareAndSwap(int32(old), int32(new))
}
