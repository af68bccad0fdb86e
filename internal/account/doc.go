// Package account implements the account workflows built on the auth core:
// registration, email confirmation, login, and password reset.
//
// Each workflow that redeems a security token first resolves the presented
// value through the store, checks the token type, and then consumes it via
// auth.SecurityTokenManager. Consumption failures are returned to the
// caller and never retried.
//
// Token lifecycle events (issued, consumed, rejected) are published to an
// EventPublisher and counted by a TokenMetrics recorder. Both are optional.
package account
