package afjustification

// DecodeError is returned by [Decode] when raw bytes match no known layout.
type DecodeError struct {
	Reason string
}

func (e DecodeError) Error() string {
	return "cannot decode justification: " + e.Reason
}
