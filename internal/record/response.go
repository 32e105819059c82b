package record

const responseKey = "response"

// NewResponse builds a protocol response record. Every response carries
// a top-level "response" marker of either "success" or "error".
func NewResponse(status, message string) *Record {
	r := New()
	r.Set(responseKey, status)
	if message != "" {
		r.Set("message", message)
	}

	return r
}

func Success() *Record {
	return NewResponse("success", "")
}

func Error(message string) *Record {
	return NewResponse("error", message)
}

// IsResponse reports whether r carries a response marker, i.e. whether
// it terminates a response stream rather than being a payload record.
func IsResponse(r *Record) bool {
	return r != nil && r.Has(responseKey)
}

// IsError reports whether r is an error response or error marker.
func IsError(r *Record) bool {
	return r != nil && r.Get(responseKey) == "error"
}

// IsSuccess reports whether r is a success response.
func IsSuccess(r *Record) bool {
	return r != nil && r.Get(responseKey) == "success"
}
