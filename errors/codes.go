package errors

// ErrorCode identifies an application error family in responses and logs.
type ErrorCode int32

const (
	ErrorCode_UNKNOWN          ErrorCode = 0
	ErrorCode_INTERNAL         ErrorCode = 1
	ErrorCode_INVALID_ARGUMENT ErrorCode = 2
	ErrorCode_NOT_FOUND        ErrorCode = 3
	ErrorCode_INVALID_PAYLOAD  ErrorCode = 4
	ErrorCode_HTTP_OK          ErrorCode = 5

	// Session errors
	ErrorCode_SESSION_NOT_FOUND ErrorCode = 100
	ErrorCode_SESSION_EXPIRED   ErrorCode = 101
	ErrorCode_SESSION_CONFLICT  ErrorCode = 102

	// Transcript errors
	ErrorCode_ENTRY_NOT_FOUND      ErrorCode = 200
	ErrorCode_VERIFICATION_FAILED  ErrorCode = 201
	ErrorCode_TRANSCRIPTION_FAILED ErrorCode = 202

	// Backend / integration errors
	ErrorCode_BACKEND_UNAVAILABLE        ErrorCode = 300
	ErrorCode_NO_BACKENDS_CONFIGURED     ErrorCode = 301
	ErrorCode_INTEGRATION_STORAGE_FAILED ErrorCode = 302
	ErrorCode_INTEGRATION_CACHE_FAILED   ErrorCode = 303
	ErrorCode_DB_QUERY_FAILED            ErrorCode = 304

	// Voice profile errors
	ErrorCode_VOICE_ENROLLMENT_FAILED ErrorCode = 400
)

var codeNames = map[ErrorCode]string{
	ErrorCode_UNKNOWN:                    "UNKNOWN",
	ErrorCode_INTERNAL:                   "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:           "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:                  "NOT_FOUND",
	ErrorCode_INVALID_PAYLOAD:            "INVALID_PAYLOAD",
	ErrorCode_HTTP_OK:                    "HTTP_OK",
	ErrorCode_SESSION_NOT_FOUND:          "SESSION_NOT_FOUND",
	ErrorCode_SESSION_EXPIRED:            "SESSION_EXPIRED",
	ErrorCode_SESSION_CONFLICT:           "SESSION_CONFLICT",
	ErrorCode_ENTRY_NOT_FOUND:            "ENTRY_NOT_FOUND",
	ErrorCode_VERIFICATION_FAILED:        "VERIFICATION_FAILED",
	ErrorCode_TRANSCRIPTION_FAILED:       "TRANSCRIPTION_FAILED",
	ErrorCode_BACKEND_UNAVAILABLE:        "BACKEND_UNAVAILABLE",
	ErrorCode_NO_BACKENDS_CONFIGURED:     "NO_BACKENDS_CONFIGURED",
	ErrorCode_INTEGRATION_STORAGE_FAILED: "INTEGRATION_STORAGE_FAILED",
	ErrorCode_INTEGRATION_CACHE_FAILED:   "INTEGRATION_CACHE_FAILED",
	ErrorCode_DB_QUERY_FAILED:            "DB_QUERY_FAILED",
	ErrorCode_VOICE_ENROLLMENT_FAILED:    "VOICE_ENROLLMENT_FAILED",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
