package domain

import "context"

// NetworkGate reports whether the network path required by an exchange is
// available. It is owned outside the scanner (for example by a VPN manager).
type NetworkGate interface {
	IsNetworkReady(ctx context.Context) bool
	CurrentEndpointLabel(ctx context.Context) (string, bool)
}
