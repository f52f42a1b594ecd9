package errors

func ServiceUnavailable(reason, message string) *Error {
	return New(503, reason, message)
}

func BadRequest(reason, message string) *Error {
	return New(400, reason, message)
}

func NotFound(reason, message string) *Error {
	return New(404, reason, message)
}

func InternalServer(reason, message string) *Error {
	return New(500, reason, message)
}

func IsServiceUnavailable(err error) bool {
	return Code(err) == 503
}

func IsBadRequest(err error) bool {
	return Code(err) == 400
}

func IsNotFound(err error) bool {
	return Code(err) == 404
}
