package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers branch on.
var (
	// ErrInvalidCredentials is returned when the broker rejects the
	// username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMfaRequired is returned from Login when the broker demands a
	// verification code before issuing tokens.
	ErrMfaRequired = errors.New("multi-factor verification required")

	// ErrDeviceNotTrusted is returned when the broker refuses the device id
	// and requires image or device verification out of band.
	ErrDeviceNotTrusted = errors.New("device not trusted")

	// ErrNotLoggedIn is returned from operations that need an access token
	// when no session is held.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrSessionExpired is returned when the access token has lapsed and
	// could not be refreshed.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidPin is returned when trade-token elevation fails because the
	// trading PIN was wrong.
	ErrInvalidPin = errors.New("invalid trading pin")

	// ErrTradeTokenDenied is returned when the broker has locked trade-token
	// issuance, typically after repeated wrong PINs.
	ErrTradeTokenDenied = errors.New("trade token denied")

	// ErrTradeTokenRequired is returned from live order mutation when no
	// trade token is held. The request never reaches the network.
	ErrTradeTokenRequired = errors.New("trade token required")

	// ErrAccountNotFound is returned when no trading account matches the
	// requested account id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrOrderNotFound is returned when the broker does not recognize the
	// order id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotCancellable is returned when cancellation is requested for
	// an order already in a terminal state.
	ErrOrderNotCancellable = errors.New("order not cancellable")

	// ErrTickerNotFound is returned when symbol lookup yields no match.
	ErrTickerNotFound = errors.New("ticker not found")

	// ErrNotConnected is returned from stream operations that require an
	// established connection.
	ErrNotConnected = errors.New("stream not connected")
)

// ValidationKind classifies order validation failures.
type ValidationKind string

const (
	MissingField    ValidationKind = "missing_field"
	InvalidQuantity ValidationKind = "invalid_quantity"
	InvalidPrice    ValidationKind = "invalid_price"
	InvalidField    ValidationKind = "invalid_field"
)

// ValidationError reports a locally rejected order before any network call.
type ValidationError struct {
	Field string
	Kind  ValidationKind
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("invalid order: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("invalid order: %s (%s)", e.Field, e.Kind)
}

// BrokerError carries a machine code and human message from a broker
// response that was transported successfully but rejected.
type BrokerError struct {
	Code    string
	Message string
}

func (e *BrokerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("broker rejected request: %s", e.Code)
	}
	return fmt.Sprintf("broker rejected request: %s: %s", e.Code, e.Message)
}

// TransportError wraps a network-level failure. Unknown is set when the
// request may have reached the broker, for example a timeout after send:
// callers must not blindly retry order placement in that case.
type TransportError struct {
	Op      string
	Unknown bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("%s: transport failure, outcome unknown: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StreamError wraps a streaming-subsystem failure.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s: %v", e.Op, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
