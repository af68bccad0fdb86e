package influxdb

import "errors"

var (
	// ErrNotConnected is returned by health checks on a closed or never
	// connected client.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps ping failures during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps batch write errors passed to the SetOnError
	// callback. Gate and token metrics are written asynchronously, so no
	// Record call returns it directly.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
