package transcode

import (
	"errors"
	"io"
)

type decodeResult struct {
	outcome Outcome
	err     error
}

// classify maps a decoder error to the way the pipeline continues.
// A stream that ends before its terminator (upstream closed early) keeps
// whatever was decoded so far. Anything else aborts the response.
func classify(err error) decodeResult {
	switch {
	case err == nil:
		return decodeResult{outcome: Completed}
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return decodeResult{outcome: Recovered, err: err}
	default:
		return decodeResult{outcome: Aborted, err: err}
	}
}

// decode runs on its own goroutine, reading the compressed stream from pr
// into dst until the stream ends, is truncated or fails.
func decode(codec *Codec, pr *io.PipeReader, dst io.Writer, results chan<- decodeResult) {
	res := classify(decodeInto(codec, pr, dst))
	if res.outcome == Aborted {
		// writers blocked on the pipe get the decode error
		pr.CloseWithError(res.err)
	} else {
		// bytes after the end of the stream are dropped so writers never block
		io.Copy(io.Discard, pr)
	}
	results <- res
}

func decodeInto(codec *Codec, src io.Reader, dst io.Writer) error {
	zr, err := codec.NewReader(src)
	if err != nil {
		return err
	}
	defer zr.Close()
	_, err = io.Copy(dst, zr)
	return err
}
