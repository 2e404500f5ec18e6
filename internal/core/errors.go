package core

import "errors"

// Error taxonomy shared by the camera client and the subscription layer.
// Callers match with errors.Is; lower layers wrap these with fmt.Errorf %w
// to attach context.
var (
	// ErrAuthentication means the device rejected the credentials. Not
	// retryable; the caller needs new credentials.
	ErrAuthentication = errors.New("authentication rejected by device")

	// ErrDeviceUnreachable means a connection failure or timeout. Safe to
	// retry with backoff.
	ErrDeviceUnreachable = errors.New("device unreachable")

	// ErrProtocol means the device answered with something unexpected,
	// usually a firmware/version mismatch. Not retryable.
	ErrProtocol = errors.New("unexpected device response")

	// ErrInvalidState means the operation is not legal in the current
	// subscription state (double subscribe, renew without a lease).
	ErrInvalidState = errors.New("invalid subscription state")
)
