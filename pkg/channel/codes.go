package channel

// Transmission error codes reported by transports. The numbering follows the legacy
// APNs binary protocol status codes so that logs stay comparable across transports.
const (
	CodeNoError            = 0
	CodeProcessingError    = 1
	CodeMissingDeviceToken = 2
	CodeMissingTopic       = 3
	CodeMissingPayload     = 4
	CodeInvalidTokenSize   = 5
	CodeInvalidTopicSize   = 6
	CodeInvalidPayloadSize = 7
	CodeInvalidToken       = 8
	CodeShutdown           = 10
	CodeUnknown            = 255
)

var codeText = map[int]string{
	CodeNoError:            "no errors encountered",
	CodeProcessingError:    "processing error",
	CodeMissingDeviceToken: "missing device token",
	CodeMissingTopic:       "missing topic",
	CodeMissingPayload:     "missing payload",
	CodeInvalidTokenSize:   "invalid token size",
	CodeInvalidTopicSize:   "invalid topic size",
	CodeInvalidPayloadSize: "invalid payload size",
	CodeInvalidToken:       "invalid token",
	CodeShutdown:           "shutdown",
	CodeUnknown:            "unknown",
}

// CodeText returns a short description of a transmission error code.
func CodeText(code int) string {
	if text, ok := codeText[code]; ok {
		return text
	}
	return codeText[CodeUnknown]
}
