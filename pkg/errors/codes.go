package errors

// Code represents an error code for categorization.
type Code string

// Error categories
const (
	ConfigurationCategory = "CON"
	PlatformCategory      = "PLT"
	MessageCategory       = "MSG"
	SystemCategory        = "SYS"
)

// Configuration error codes
const (
	ErrMisconfigured    Code = "CON001" // Push configuration is missing required data or has the wrong shape
	ErrInvalidConfig    Code = "CON002" // A configuration value is out of range
	ErrConfigLoadFailed Code = "CON003" // Configuration file could not be read or decoded
)

// Platform error codes
const (
	ErrNoConnection Code = "PLT001" // No channel qualifies for the recipient
	ErrTransmission Code = "PLT002" // Every qualified channel rejected the notification
	ErrTransport    Code = "PLT003" // Transport could not be created or closed
)

// Message error codes
const (
	ErrInvalidPayload Code = "MSG001" // Payload field has an unsupported type
)

// System error codes
const (
	ErrTokenStore Code = "SYS001" // Invalid-token registry failed
	ErrCancelled  Code = "SYS002" // Caller gave up before delivery resolved
)

// ErrorInfo contains metadata about error codes.
type ErrorInfo struct {
	Code        Code   `json:"code"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Retryable   bool   `json:"retryable"`
}

var errorInfo = map[Code]ErrorInfo{
	ErrMisconfigured:    {Category: ConfigurationCategory, Description: "APNS is misconfigured"},
	ErrInvalidConfig:    {Category: ConfigurationCategory, Description: "invalid configuration value"},
	ErrConfigLoadFailed: {Category: ConfigurationCategory, Description: "failed to load configuration"},
	ErrNoConnection:     {Category: PlatformCategory, Description: "no connection available"},
	ErrTransmission:     {Category: PlatformCategory, Description: "transmission failed on every eligible connection", Retryable: true},
	ErrTransport:        {Category: PlatformCategory, Description: "transport failure", Retryable: true},
	ErrInvalidPayload:   {Category: MessageCategory, Description: "invalid notification payload"},
	ErrTokenStore:       {Category: SystemCategory, Description: "token store failure", Retryable: true},
	ErrCancelled:        {Category: SystemCategory, Description: "operation cancelled"},
}

// GetErrorInfo returns metadata for a given error code.
func GetErrorInfo(code Code) ErrorInfo {
	info, ok := errorInfo[code]
	if !ok {
		return ErrorInfo{Code: code, Category: SystemCategory, Description: "unknown error"}
	}
	info.Code = code
	return info
}

// IsRetryable reports whether errors with this code are worth retrying.
func IsRetryable(code Code) bool {
	return GetErrorInfo(code).Retryable
}
