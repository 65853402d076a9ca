package transcode

import (
	"context"
	"errors"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
)

var ErrPipelineDone = errors.New("transcode: pipeline done")

type state int

const (
	stateInit state = iota
	stateIntercepting
	stateDecoding
	stateRecovered
	stateAccumulating
	stateTransforming
	stateReencoding
	stateAborted
	stateDone
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateIntercepting:
		return "intercepting"
	case stateDecoding:
		return "decoding"
	case stateRecovered:
		return "recovered"
	case stateAccumulating:
		return "accumulating"
	case stateTransforming:
		return "transforming"
	case stateReencoding:
		return "re-encoding"
	case stateAborted:
		return "aborted"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// interceptor stands in front of a sink. Upstream writes go into the
// decode stage; Close materializes the body, runs the transform and
// re-encodes into the real sink. Write and Close must be called from one
// goroutine, as with any io.Writer.
type interceptor struct {
	sink      Sink
	codec     *Codec
	transform Transform
	ctx       context.Context
	log       log.FieldLogger
	observe   func(Outcome)

	state   state
	body    body
	outcome Outcome
	err     error // decode or cancellation error of an aborted pipeline

	pw      *io.PipeWriter
	results chan decodeResult

	finalizeOnce sync.Once
	finalizeErr  error
}

func newInterceptor(sink Sink, codec *Codec, fn Transform, o *options) *interceptor {
	ic := &interceptor{
		sink:      sink,
		codec:     codec,
		transform: fn,
		ctx:       o.ctx,
		log:       o.log,
		observe:   o.observe,
		state:     stateIntercepting,
	}
	if codec != nil {
		pr, pw := io.Pipe()
		ic.pw = pw
		ic.results = make(chan decodeResult, 1)
		go decode(codec, pr, &ic.body, ic.results)
	}
	return ic
}

func (ic *interceptor) Write(p []byte) (int, error) {
	if ic.state == stateDone {
		if ic.err != nil {
			return 0, ic.err
		}
		return 0, ErrPipelineDone
	}
	if ic.pw == nil {
		return ic.body.Write(p)
	}

	ic.state = stateDecoding
	n, err := ic.pw.Write(p)
	if err != nil {
		res := <-ic.results
		if res.err == nil {
			res.err = err
		}
		ic.abort(res.err)
		return n, res.err
	}
	return n, nil
}

// Close ends the upstream body and completes the response. It returns
// errors from writing or finalizing the real sink only; decode failures
// are logged and reported through the observer.
func (ic *interceptor) Close() error {
	if ic.state == stateDone {
		return ic.finalizeErr
	}

	if ic.pw != nil {
		ic.pw.Close()
		res := <-ic.results
		switch res.outcome {
		case Aborted:
			ic.abort(res.err)
			return ic.finalizeErr
		case Recovered:
			ic.log.Warnf("%s body ended early, keeping the decoded part: %v", ic.codec.Name, res.err)
			ic.outcome = Recovered
			ic.state = stateRecovered
		}
	}

	ic.state = stateAccumulating
	text := ic.body.String()

	ic.state = stateTransforming
	text, err := invoke(ic.ctx, text, ic.transform)
	if err != nil {
		ic.abort(err)
		return ic.finalizeErr
	}

	ic.state = stateReencoding
	if err := emit(ic.sink, ic.codec, []byte(text)); err != nil {
		ic.log.Errorf("write response body: %v", err)
		ic.finalize()
		ic.finish()
		return errors.Join(err, ic.finalizeErr)
	}
	ic.finalize()
	ic.finish()
	return ic.finalizeErr
}

// abort finalizes the sink without a body. The transform never runs.
func (ic *interceptor) abort(err error) {
	ic.state = stateAborted
	ic.log.Errorf("abort response: %v", err)
	ic.err = err
	ic.outcome = Aborted
	ic.finalize()
	ic.finish()
}

func (ic *interceptor) finalize() {
	ic.finalizeOnce.Do(func() {
		ic.finalizeErr = ic.sink.Close()
	})
}

func (ic *interceptor) finish() {
	ic.state = stateDone
	if ic.observe != nil {
		ic.observe(ic.outcome)
	}
}
