package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Process exit codes.
const (
	exitFailure     = 1
	exitAuth        = 3
	exitValidation  = 4
	exitNotFound    = 5
	exitConflict    = 6
	exitPayment     = 7
	exitUnavailable = 8
	exitConfig      = 9
)

// ExitError is an error that carries a specific process exit code.
// Commands return it so main can exit with the right status.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// exitCode maps a storefront error onto a process exit code.
func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code != 0 {
		return exitErr.Code
	}
	switch {
	case errors.Is(err, apperrors.ErrNotAuthenticated),
		errors.Is(err, apperrors.ErrAuthExpired),
		errors.Is(err, apperrors.ErrInvalidCredentials),
		errors.Is(err, apperrors.ErrEmailUnverified),
		errors.Is(err, apperrors.ErrForbidden):
		return exitAuth
	case errors.Is(err, apperrors.ErrValidation):
		return exitValidation
	case errors.Is(err, apperrors.ErrNotFound):
		return exitNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return exitConflict
	case errors.Is(err, apperrors.ErrPaymentFailed):
		return exitPayment
	case errors.Is(err, apperrors.ErrNetwork),
		errors.Is(err, apperrors.ErrServiceUnavail),
		errors.Is(err, apperrors.ErrRateLimited),
		errors.Is(err, apperrors.ErrServer):
		return exitUnavailable
	default:
		return exitFailure
	}
}

// describe renders err for the terminal. returnCmd is the command line to
// suggest after logging in again.
func describe(err error, returnCmd string) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	if appErr.ReturnPath != "" {
		returnCmd = appErr.ReturnPath
	}

	var b strings.Builder
	switch {
	case errors.Is(err, apperrors.ErrAuthExpired):
		b.WriteString("Your session has expired. Run `storefront login`")
		writeRetry(&b, returnCmd)
	case errors.Is(err, apperrors.ErrNotAuthenticated):
		b.WriteString("You are not logged in. Run `storefront login`")
		writeRetry(&b, returnCmd)
	case errors.Is(err, apperrors.ErrEmailUnverified):
		b.WriteString(appErr.Message)
		b.WriteString("\nVerify it with `storefront verify-email`, or get a new code with `storefront resend-otp`.")
	default:
		b.WriteString(capitalize(appErr.Message))
	}

	for _, k := range slices.Sorted(maps.Keys(appErr.Fields)) {
		fmt.Fprintf(&b, "\n  %s: %s", k, appErr.Fields[k])
	}
	return b.String()
}

func writeRetry(b *strings.Builder, returnCmd string) {
	if returnCmd == "" {
		b.WriteString(".")
		return
	}
	fmt.Fprintf(b, ", then run `%s` again.", returnCmd)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
