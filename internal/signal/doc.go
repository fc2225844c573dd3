// Package signal collects raw interaction telemetry into bounded rolling
// windows and derives normalized features from window snapshots.
//
// Feature functions are pure: they read a Window and the current time and
// never mutate collector state. Insufficient samples produce a neutral zero
// contribution rather than an error.
package signal
