package domain

import "errors"

// Filesystem errors - 檔案系統層錯誤
var (
	// ErrNotFound indicates the requested path does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrPermissionDenied indicates insufficient permissions or a path escaping its root
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotDirectory indicates expected a directory but got a file
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotFile indicates expected a file but got a directory
	ErrNotFile = errors.New("not a file")

	// ErrIOFailure indicates a read, copy or delete of a single file failed
	ErrIOFailure = errors.New("i/o failure")
)

// Sync errors - 同步邏輯層錯誤
var (
	// ErrRootNotFound indicates a source or destination root does not exist
	ErrRootNotFound = errors.New("root directory not found")

	// ErrCacheCorrupt indicates a hash database could not be parsed
	ErrCacheCorrupt = errors.New("corrupted hash database")

	// ErrDeclined indicates the user answered "no" to a prompt
	ErrDeclined = errors.New("declined by user")

	// ErrSyncInProgress indicates another sync is already running
	ErrSyncInProgress = errors.New("sync already in progress")
)

// Config errors - 設定檔錯誤
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")
)
