// Package gcloud holds helpers shared by everything that drives the gcloud CLI.
package gcloud

import (
	"errors"
	"strings"

	"github.com/journai/journai-ops/internal/command"
)

var (
	alreadyExistsMarkers = []string{
		"already exists",
		"ALREADY_EXISTS",
		"already own",
		"alreadyExists",
		"HTTPError 409",
	}
	notFoundMarkers = []string{
		"NOT_FOUND",
		"not found",
		"does not exist",
		"was not found",
		"HTTPError 404",
	}
	permissionMarkers = []string{
		"PERMISSION_DENIED",
		"does not have permission",
		"HTTPError 403",
	}
)

// IsAlreadyExists reports whether a failed command rejected a create because the
// resource is already there.
func IsAlreadyExists(err error) bool {
	return stderrContains(err, alreadyExistsMarkers)
}

// IsNotFound reports whether a failed command reported a missing resource.
func IsNotFound(err error) bool {
	return stderrContains(err, notFoundMarkers)
}

// IsPermissionDenied reports whether a failed command was refused by IAM.
func IsPermissionDenied(err error) bool {
	return stderrContains(err, permissionMarkers)
}

// Detail returns the raw stderr of a failed command, or the error text.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var execErr *command.ExecutionError
	if errors.As(err, &execErr) {
		if stderr := strings.TrimSpace(execErr.Stderr); stderr != "" {
			return stderr
		}
	}
	return err.Error()
}

func stderrContains(err error, markers []string) bool {
	if err == nil {
		return false
	}
	var execErr *command.ExecutionError
	if !errors.As(err, &execErr) {
		return false
	}
	for _, marker := range markers {
		if strings.Contains(execErr.Stderr, marker) {
			return true
		}
	}
	return false
}
