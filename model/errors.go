package model

import "errors"

var (
	// ErrFeedUnavailable is returned when the seismic feed cannot be reached or answers with a non-2xx status.
	ErrFeedUnavailable = errors.New("seismic feed unavailable")

	// ErrClassifierUnavailable is returned when the severity backend call fails.
	ErrClassifierUnavailable = errors.New("severity classifier unavailable")

	// ErrVaultNotFound is returned when a vault id does not exist in the store.
	ErrVaultNotFound = errors.New("vault not found")

	// ErrNoActiveVault is returned when the store holds no vaults yet.
	ErrNoActiveVault = errors.New("no active vault")

	// ErrCycleInProgress is returned when a monitor cycle is requested while another one is running.
	ErrCycleInProgress = errors.New("monitor cycle already in progress")
)
