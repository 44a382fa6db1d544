package orchestrator

import (
	"errors"
	"fmt"

	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
)

// ErrNoData is the fetch failure reported when a platform client returns
// neither programs nor an error.
var ErrNoData = errors.New("platform returned no data")

// AccessError means the platform rejected our credentials. Nothing was fetched
// and persisted data for the platform is untouched.
type AccessError struct {
	Platform scope.Platform
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: access check failed", e.Platform.DisplayName())
}

// FetchError means the program list could not be retrieved. No diff ran.
type FetchError struct {
	Platform scope.Platform
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch programs: %v", e.Platform.DisplayName(), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ProgramError is a failure confined to one program. Other programs of the
// same platform are still processed.
type ProgramError struct {
	Platform scope.Platform
	Slug     string
	Err      error
}

func (e *ProgramError) Error() string {
	if e.Slug == "" {
		return fmt.Sprintf("%s: %v", e.Platform, e.Err)
	}
	return fmt.Sprintf("%s/%s: %v", e.Platform, e.Slug, e.Err)
}

func (e *ProgramError) Unwrap() error {
	return e.Err
}
