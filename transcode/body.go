package transcode

import "bytes"

// body collects chunks in arrival order and is turned into text once.
type body struct {
	buf  bytes.Buffer
	done bool
}

func (b *body) Write(p []byte) (int, error) {
	if b.done {
		return 0, ErrPipelineDone
	}
	return b.buf.Write(p)
}

// String finalizes the body. Bytes are kept as they are, no replacement of
// invalid UTF-8.
func (b *body) String() string {
	b.done = true
	s := b.buf.String()
	b.buf = bytes.Buffer{}
	return s
}
