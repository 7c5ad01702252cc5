package integrations

// Result is the uniform envelope returned by every service operation.
type Result struct {
	Success bool          `json:"success"`
	Data    interface{}   `json:"data,omitempty"`
	Error   *ServiceError `json:"error,omitempty"`
}

// ErrorKind classifies a failure so transports can pick a status code
// without parsing message text.
type ErrorKind int

const (
	KindFailed ErrorKind = iota // operation could not be performed
	KindNotFound
	KindInvalid // caller input rejected
)

type ServiceError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"-"`
}

func ok(data interface{}) Result {
	return Result{Success: true, Data: data}
}

func fail(code, message string) Result {
	return failKind(KindFailed, code, message)
}

func failNotFound(code, message string) Result {
	return failKind(KindNotFound, code, message)
}

func failInvalid(code, message string) Result {
	return failKind(KindInvalid, code, message)
}

func failKind(kind ErrorKind, code, message string) Result {
	return Result{Success: false, Error: &ServiceError{Code: code, Message: message, Kind: kind}}
}
