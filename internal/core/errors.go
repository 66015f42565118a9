package core

import "fmt"

// Error is a structured error with a stable code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code so sentinels compare across wrapping.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError returns a new error with the sentinel's code and a cause attached.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Wrapf is WrapError with a formatted cause.
func Wrapf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Provider errors
	ErrRateLimited       = &Error{Code: "RATE_LIMITED", Message: "provider rate limit hit"}
	ErrSymbolNotFound    = &Error{Code: "NOT_FOUND", Message: "symbol not found"}
	ErrProviderTransient = &Error{Code: "TRANSIENT", Message: "provider temporarily unavailable"}
	ErrProviderExhausted = &Error{Code: "EXHAUSTED", Message: "all providers failed"}
	ErrNewsUnsupported   = &Error{Code: "NEWS_UNSUPPORTED", Message: "provider has no news endpoint"}

	// Tool errors
	ErrUnknownTool = &Error{Code: "UNKNOWN_TOOL", Message: "tool not found"}
	ErrInvalidArgs = &Error{Code: "INVALID_ARGS", Message: "invalid tool arguments"}

	// Memory errors
	ErrMemoryStore     = &Error{Code: "MEMORY_STORE", Message: "session store unavailable"}
	ErrSessionNotFound = &Error{Code: "SESSION_NOT_FOUND", Message: "session not found"}
	ErrSessionBusy     = &Error{Code: "SESSION_BUSY", Message: "another turn is in flight for this session"}

	// Reasoning errors
	ErrReasoningFailed = &Error{Code: "REASONING", Message: "reasoning call failed"}

	// Retrieval errors
	ErrEmbeddingFailed  = &Error{Code: "EMBEDDING", Message: "embedding call failed"}
	ErrEmbeddingVersion = &Error{Code: "EMBEDDING_VERSION", Message: "vector index built with a different embedding model"}
	ErrVectorStore      = &Error{Code: "VECTOR_STORE", Message: "vector store unavailable"}
	ErrDocumentNotFound = &Error{Code: "DOCUMENT_NOT_FOUND", Message: "document not found"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
