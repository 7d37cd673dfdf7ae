package functions

// Result is returned to the call platform as the function's response body.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	SID     string `json:"sid,omitempty"`
}

func ok(message string) Result {
	return Result{Success: true, Message: message}
}

func failed(errText string) Result {
	return Result{Success: false, Error: errText}
}
