// Package client implements the antctrl command line client.
//
// It sends commands to a running controller over gRPC, prints the status
// snapshot, and validates preset documents offline.
package client
