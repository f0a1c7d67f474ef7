package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	backendErrorTemplateConstant          = "%s failed: %v"
	backendErrorWithPathsTemplateConstant = "%s failed for %s: %v"
	backendPathSeparatorConstant          = ", "
	repositoryNotOpenMessageConstant      = "repository handle is not open"
)

// Backend operation names reported in BackendError.
const (
	OperationOpen       = "open"
	OperationStatus     = "status"
	OperationPathStatus = "path_status"
	OperationStage      = "stage"
	OperationUnstage    = "unstage"
	OperationCheckout   = "checkout"
)

// ErrRepositoryNotOpen indicates that a handle was closed or belongs to another backend.
var ErrRepositoryNotOpen = errors.New(repositoryNotOpenMessageConstant)

// RepositoryHandle is an open repository. Only the backend that produced it may use it.
type RepositoryHandle interface {
	Path() string
}

// StatusOptions tunes a full status retrieval.
type StatusOptions struct {
	DetectRenames  bool
	IncludeIgnored bool
}

// CheckoutOptions tunes CheckoutPaths.
type CheckoutOptions struct {
	Force bool
}

// Backend is the version-control capability used by the core. Implementations report failures as *BackendError.
//
// RetrievePathsStatus treats each path as a pathspec: it reports every changed path equal to or below it.
// A requested path that names no directory and has no reported entry is returned as Unmodified, or
// Nonexistent when it is missing. Directories never get an entry of their own.
type Backend interface {
	IsValidRepository(path string) bool
	OpenRepository(executionContext context.Context, path string) (RepositoryHandle, error)
	Close(handle RepositoryHandle) error
	RetrieveStatus(executionContext context.Context, handle RepositoryHandle, options StatusOptions) (*StatusSnapshot, error)
	RetrievePathsStatus(executionContext context.Context, handle RepositoryHandle, paths []string) ([]StatusEntry, error)
	Stage(executionContext context.Context, handle RepositoryHandle, paths []string) error
	Unstage(executionContext context.Context, handle RepositoryHandle, paths []string) error
	CheckoutPaths(executionContext context.Context, handle RepositoryHandle, paths []string, options CheckoutOptions) error
}

// BackendError describes a failed backend call. The core treats it as retryable.
type BackendError struct {
	Operation string
	Paths     []string
	Cause     error
}

// NewBackendError wraps cause for operation over paths.
func NewBackendError(operation string, paths []string, cause error) *BackendError {
	return &BackendError{Operation: operation, Paths: append([]string(nil), paths...), Cause: cause}
}

func (backendError *BackendError) Error() string {
	if len(backendError.Paths) == 0 {
		return fmt.Sprintf(backendErrorTemplateConstant, backendError.Operation, backendError.Cause)
	}
	return fmt.Sprintf(backendErrorWithPathsTemplateConstant, backendError.Operation, strings.Join(backendError.Paths, backendPathSeparatorConstant), backendError.Cause)
}

func (backendError *BackendError) Unwrap() error {
	return backendError.Cause
}
