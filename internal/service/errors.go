package service

import "errors"

var (
	// ErrRunningAlready is returned by Start while an instance is live.
	ErrRunningAlready = errors.New("proxy service is already running")

	// ErrNotRunning is returned by Stop when no instance is live.
	ErrNotRunning = errors.New("proxy service is not running")

	// ErrNoAccounts is returned by Start when the pool is empty and no
	// secondary backend can dispatch.
	ErrNoAccounts = errors.New("no active accounts; add an account first")
)
