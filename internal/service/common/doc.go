// Package common holds helpers shared by schedule-ctl and the integration tests.
//
// It provides a gRPC client for the daemon's control service with call
// timeouts, and detects the calling user for audit logging.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
