// Package version exposes build information for the chatstream binary.
//
// Version, commit, branch and build time are stamped at link time:
//
//	go build -ldflags "-X github.com/kbukum/chatstream/version.Version=1.2.0" ./cmd/chatstream
//
// Unset values fall back to the VCS settings recorded by the Go toolchain.
package version
