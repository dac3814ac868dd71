package response

// Response represents the uniform API envelope returned by every endpoint
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"` // machine readable error kind, e.g. "already_checked_in"
}

// Success wraps data in a successful envelope
func Success(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// Error returns a failed envelope carrying a machine code and a user-facing message
func Error(code, message string) Response {
	return Response{
		Success: false,
		Code:    code,
		Error:   message,
	}
}

// ErrorWithData is like Error but keeps a payload the UI needs to render the failure,
// e.g. the allowed roles on a permission denial.
func ErrorWithData(code, message string, data interface{}) Response {
	return Response{
		Success: false,
		Code:    code,
		Error:   message,
		Data:    data,
	}
}
