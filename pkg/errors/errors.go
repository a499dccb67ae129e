package errors

import (
	"fmt"
	"os"
	"strings"

	"github.com/ArtsyMacaw/kaprica/pkg/logger"

	"github.com/fatih/color"
)

type ExitCode int

const (
	ExitCodeSuccess    ExitCode = 0
	ExitCodeGeneral    ExitCode = 1
	ExitCodeTransport  ExitCode = 2
	ExitCodeStore      ExitCode = 3
	ExitCodeValidation ExitCode = 4
	ExitCodeNotFound   ExitCode = 5
	ExitCodeCancelled  ExitCode = 6
	ExitCodeTimeout    ExitCode = 7
)

// Standardized error messages for consistent user-facing errors
const (
	ErrMsgTransportFailed = "Failed to connect to the Wayland compositor"
	ErrMsgStoreFailed     = "History database operation failed"
	ErrMsgInvalidInput    = "Invalid input provided"
)

type Error struct {
	Code       ExitCode
	Message    string
	Underlying error
	Suggestion string
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func New(code ExitCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func NewWithError(code ExitCode, message string, err error) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
	}
}

func NewWithSuggestion(code ExitCode, message string, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

func NewWithAll(code ExitCode, message string, err error, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Suggestion: suggestion,
	}
}

func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	if wrapped, ok := err.(*Error); ok {
		return &Error{
			Code:       wrapped.Code,
			Message:    message + ": " + wrapped.Message,
			Underlying: wrapped.Underlying,
			Suggestion: wrapped.Suggestion,
		}
	}

	return &Error{
		Code:       ExitCodeGeneral,
		Message:    message,
		Underlying: err,
	}
}

func WrapWithCode(err error, code ExitCode, message string) *Error {
	if err == nil {
		return nil
	}

	var errMsg string
	if wrapped, ok := err.(*Error); ok {
		errMsg = wrapped.Message
		if wrapped.Underlying != nil {
			errMsg += ": " + wrapped.Underlying.Error()
		}
	} else {
		errMsg = err.Error()
	}

	return &Error{
		Code:       code,
		Message:    message + ": " + errMsg,
		Underlying: err,
	}
}

func Is(err error, target error) bool {
	if err == nil || target == nil {
		return false
	}

	if e, ok := err.(*Error); ok {
		if t, ok := target.(*Error); ok {
			return e.Code == t.Code
		}
	}

	return err.Error() == target.Error()
}

func IsExitCode(err error, code ExitCode) bool {
	if err == nil {
		return false
	}

	if e, ok := err.(*Error); ok {
		return e.Code == code
	}

	return false
}

// Handle processes an error, prints it to stderr, and exits the program.
// Deprecated: use HandleReturn in library code; Handle remains for the
// top-level cobra entrypoints that want process-exit semantics.
func Handle(err error) {
	if err == nil {
		return
	}
	os.Exit(int(printAndClassify(err)))
}

// HandleReturn processes an error and returns the appropriate exit code.
// Unlike Handle, it does not call os.Exit - the caller is responsible for
// exiting the program. This makes it suitable for use in library code.
func HandleReturn(err error) ExitCode {
	if err == nil {
		return ExitCodeSuccess
	}
	return printAndClassify(err)
}

func printAndClassify(err error) ExitCode {
	var exitCode ExitCode = ExitCodeGeneral
	var message string
	var suggestion string

	if e, ok := err.(*Error); ok {
		exitCode = e.Code
		message = e.Message
		suggestion = e.Suggestion

		if e.Underlying != nil {
			logger.Error().Err(e.Underlying).Msg(e.Message)
		} else {
			logger.Error().Msg(e.Message)
		}
	} else {
		message = err.Error()
		logger.Error().Msg(message)
	}

	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	fmt.Fprintln(os.Stderr)
	red.Fprint(os.Stderr, "Error: ")
	fmt.Fprintln(os.Stderr, message)

	if suggestion != "" {
		yellow.Fprint(os.Stderr, "Suggestion: ")
		lines := strings.Split(suggestion, "\n")
		for i, line := range lines {
			if i == 0 {
				fmt.Fprintln(os.Stderr, line)
			} else if strings.HasPrefix(line, "  -") {
				cyan.Fprintln(os.Stderr, line)
			} else {
				fmt.Fprintln(os.Stderr, "           "+line)
			}
		}
	}

	fmt.Fprintln(os.Stderr)

	return exitCode
}

// HandleQuiet processes an error quietly (minimal output) and exits the program.
func HandleQuiet(err error) {
	if err == nil {
		return
	}
	os.Exit(int(HandleQuietReturn(err)))
}

// HandleQuietReturn processes an error quietly and returns the appropriate
// exit code without printing anything beyond a single log line.
func HandleQuietReturn(err error) ExitCode {
	if err == nil {
		return ExitCodeSuccess
	}

	var exitCode ExitCode = ExitCodeGeneral

	if e, ok := err.(*Error); ok {
		exitCode = e.Code
	} else {
		logger.Error().Err(err).Msg("operation failed")
	}

	return exitCode
}

func UserError(code ExitCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func UserErrorWithSuggestion(code ExitCode, message string, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// TransportError wraps a failure talking to the Wayland compositor over
// the data-control protocol (connect, registry bind, socket I/O).
func TransportError(err error) *Error {
	return &Error{
		Code:       ExitCodeTransport,
		Message:    ErrMsgTransportFailed,
		Underlying: err,
		Suggestion: "Check that WAYLAND_DISPLAY and XDG_RUNTIME_DIR are set and the compositor supports wlr-data-control-v1.",
	}
}

// StoreError wraps a failure opening or querying the history database.
func StoreError(err error) *Error {
	return &Error{
		Code:       ExitCodeStore,
		Message:    ErrMsgStoreFailed,
		Underlying: err,
	}
}

// StoreBusyError reports that sqlite returned SQLITE_BUSY after the
// configured retry budget was exhausted.
func StoreBusyError(op string) *Error {
	return &Error{
		Code:       ExitCodeStore,
		Message:    fmt.Sprintf("history database busy during %s", op),
		Suggestion: "Another kapc/kapcd process is holding a write lock; retry shortly.",
	}
}

func EntryNotFoundError(id int64) *Error {
	return &Error{
		Code:       ExitCodeNotFound,
		Message:    fmt.Sprintf("entry %d not found", id),
		Suggestion: "Use 'kapc search' to list known entry ids.",
	}
}

func ValidationError(message string) *Error {
	return &Error{
		Code:    ExitCodeValidation,
		Message: message,
	}
}

func TimeoutError(operation string) *Error {
	return &Error{
		Code:       ExitCodeTimeout,
		Message:    fmt.Sprintf("Operation timed out: %s", operation),
		Suggestion: "The clipboard source did not respond in time.",
	}
}

func CancelledError(operation string) *Error {
	return &Error{
		Code:       ExitCodeCancelled,
		Message:    fmt.Sprintf("Operation cancelled: %s", operation),
		Suggestion: "The operation was interrupted. No changes were made.",
	}
}

// CommandError wraps errors from command handlers with consistent formatting.
// It preserves the original error chain for inspection while providing
// a user-friendly message.
func CommandError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// WrapWithMessage wraps an error with a message and returns an Error with the specified exit code.
// If the error is nil, it returns nil. If the error is already an Error, it preserves the code.
func WrapWithMessage(code ExitCode, message string, err error) *Error {
	if err == nil {
		return nil
	}

	if e, ok := err.(*Error); ok {
		return &Error{
			Code:       e.Code,
			Message:    message + ": " + e.Message,
			Underlying: e.Underlying,
			Suggestion: e.Suggestion,
		}
	}

	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
	}
}
