package ingest

// accumulator tracks the cumulative size of field parts for one request
// and buffers each field's value.
type accumulator struct {
	max  int64 // 0 = unlimited
	size int64
}

// add counts chunk against the request-wide limit and appends it to value.
// Once the limit is exceeded the chunk is not appended and every later
// call fails too.
func (a *accumulator) add(value, chunk []byte) ([]byte, error) {
	a.size += int64(len(chunk))
	if a.exceeded() {
		return value, errMaxPartsSize(a.size)
	}
	return append(value, chunk...), nil
}

func (a *accumulator) exceeded() bool {
	return a.max > 0 && a.size > a.max
}
