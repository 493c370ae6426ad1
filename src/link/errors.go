package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// ErrorKind classifies a failed connection attempt. Every kind is retried.
type ErrorKind int

const (
	ProtocolError ErrorKind = iota
	Timeout
	AuthRejected
	NetworkUnreachable
)

func (k ErrorKind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case AuthRejected:
		return "auth rejected"
	case NetworkUnreachable:
		return "network unreachable"
	default:
		return "protocol error"
	}
}

// ErrLinkDown is reported when a connected link's status query says it dropped
var ErrLinkDown = errors.New("link down")

// ConnectError is a classified connection failure
type ConnectError struct {
	Kind ErrorKind
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Classify wraps err in a ConnectError, keeping an existing classification
func Classify(err error) *ConnectError {
	if err == nil {
		return nil
	}

	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce
	}

	return &ConnectError{Kind: kindOf(err), Err: err}
}

func kindOf(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	if errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) ||
		errors.Is(err, packets.ErrorRefusedNotAuthorised) {
		return AuthRejected
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, packets.ErrorNetworkError) ||
		errors.Is(err, ErrLinkDown) {
		return NetworkUnreachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NetworkUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NetworkUnreachable
	}

	return ProtocolError
}
