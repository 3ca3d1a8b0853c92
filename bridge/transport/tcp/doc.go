// Package tcp implements the bridge transport over loopback TCP, for platforms or
// setups where Unix domain sockets are not available. The listener refuses non loopback
// addresses since the bridge has no authentication.
package tcp
