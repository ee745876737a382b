package mqtt3

// Listener receives the events of a client. Calls are made from the client's
// executor, one at a time and in the order the events happened.
type Listener interface {
	// OnConnected is called when the broker accepts the connection.
	OnConnected(sessionPresent bool)

	// OnConnectionFailed is called when the broker refuses the connection.
	// OnDisconnected follows with a *ConnectError.
	OnConnectionFailed(code ConnectReturnCode)

	// OnDisconnected is called when the connection ends. err is nil after
	// Disconnect or an orderly close, otherwise a *ConnectError or a
	// *ConnectionLostError.
	OnDisconnected(err error)

	// OnMessage is called for each message the broker delivers.
	OnMessage(msg *Message)

	// OnActionComplete is called when a publish, subscribe or unsubscribe
	// is acknowledged.
	OnActionComplete(tok *Token)

	// OnPong is called when the broker answers a PINGREQ.
	OnPong()
}

// ListenerFuncs implements Listener with optional functions. Nil fields are
// skipped.
type ListenerFuncs struct {
	Connected        func(sessionPresent bool)
	ConnectionFailed func(code ConnectReturnCode)
	Disconnected     func(err error)
	Message          func(msg *Message)
	ActionComplete   func(tok *Token)
	Pong             func()
}

// OnConnected calls f.Connected.
func (f *ListenerFuncs) OnConnected(sessionPresent bool) {
	if f.Connected != nil {
		f.Connected(sessionPresent)
	}
}

// OnConnectionFailed calls f.ConnectionFailed.
func (f *ListenerFuncs) OnConnectionFailed(code ConnectReturnCode) {
	if f.ConnectionFailed != nil {
		f.ConnectionFailed(code)
	}
}

// OnDisconnected calls f.Disconnected.
func (f *ListenerFuncs) OnDisconnected(err error) {
	if f.Disconnected != nil {
		f.Disconnected(err)
	}
}

// OnMessage calls f.Message.
func (f *ListenerFuncs) OnMessage(msg *Message) {
	if f.Message != nil {
		f.Message(msg)
	}
}

// OnActionComplete calls f.ActionComplete.
func (f *ListenerFuncs) OnActionComplete(tok *Token) {
	if f.ActionComplete != nil {
		f.ActionComplete(tok)
	}
}

// OnPong calls f.Pong.
func (f *ListenerFuncs) OnPong() {
	if f.Pong != nil {
		f.Pong()
	}
}
