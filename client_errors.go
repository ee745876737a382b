package mqtt3

import "errors"

// Sentinel errors for the connection lifecycle - check with errors.Is().
var (
	// ErrConnectionLost is reported when the transport closes unexpectedly or
	// a received packet cannot be processed.
	ErrConnectionLost = errors.New("mqtt3: connection lost")

	// ErrConnectRefused is reported when the broker answers CONNECT with a
	// non-zero return code.
	ErrConnectRefused = errors.New("mqtt3: connection refused")

	// ErrAuthFailed is reported for bad credentials or missing authorization.
	ErrAuthFailed = errors.New("mqtt3: authentication failed")

	// ErrKeepAliveTimeout is reported when the broker does not answer PINGREQ.
	ErrKeepAliveTimeout = errors.New("mqtt3: keep-alive timeout")
)

// Sentinel errors for operations - check with errors.Is().
var (
	// ErrClientClosed fails actions still pending when the client disconnects.
	ErrClientClosed = errors.New("mqtt3: client closed")

	// ErrNotConnected is returned when an operation requires an active connection.
	ErrNotConnected = errors.New("mqtt3: not connected")

	// ErrSubscribeFailed is returned when the broker rejects a topic filter.
	ErrSubscribeFailed = errors.New("mqtt3: subscribe failed")

	// ErrNoServers is returned by Connect when no broker address is known.
	ErrNoServers = errors.New("mqtt3: no servers configured")
)

// ConnectError contains details about a refused connection attempt.
// Extract with errors.As().
type ConnectError struct {
	err        error
	ReturnCode ConnectReturnCode
}

func (e *ConnectError) Error() string {
	return "connect failed: " + e.ReturnCode.String()
}

func (e *ConnectError) Unwrap() []error { return []error{ErrConnectRefused, e.err} }

// NewConnectError creates a new ConnectError from a CONNACK return code.
func NewConnectError(code ConnectReturnCode) *ConnectError {
	baseErr := ErrProtocolViolation
	switch code {
	case ConnectBadCredentials, ConnectNotAuthorized:
		baseErr = ErrAuthFailed
	case ConnectServerUnavailable, ConnectIdentifierRejected, ConnectUnacceptableProtocol:
		baseErr = ErrConnectRefused
	}
	return &ConnectError{
		err:        baseErr,
		ReturnCode: code,
	}
}

// ConnectionLostError contains details about an unexpected disconnection.
// Extract with errors.As(); errors.Is() matches both ErrConnectionLost and
// the cause.
type ConnectionLostError struct {
	Cause error
}

func (e *ConnectionLostError) Error() string {
	if e.Cause != nil {
		return "connection lost: " + e.Cause.Error()
	}
	return "connection lost"
}

func (e *ConnectionLostError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrConnectionLost}
	}
	return []error{ErrConnectionLost, e.Cause}
}

// NewConnectionLostError creates a new ConnectionLostError.
func NewConnectionLostError(cause error) *ConnectionLostError {
	return &ConnectionLostError{Cause: cause}
}

// SubscribeError lists the topic filters the broker rejected.
// Extract with errors.As().
type SubscribeError struct {
	Topics []string
}

func (e *SubscribeError) Error() string {
	msg := "subscribe failed:"
	for _, topic := range e.Topics {
		msg += " " + topic
	}
	return msg
}

func (e *SubscribeError) Unwrap() error { return ErrSubscribeFailed }
