package transcode

import "context"

// Result is what a Transform returns: an immediate text, a pending text
// delivered on a channel, or the zero value meaning empty text.
type Result struct {
	text    string
	pending <-chan string

	// then continues a chain once pending has delivered
	then func(ctx context.Context, text string) (string, error)
}

// Immediate is a result that is already known.
func Immediate(text string) Result {
	return Result{text: text}
}

// Pending wraps a channel that delivers the new body. A channel closed
// without a value resolves to empty text.
func Pending(ch <-chan string) Result {
	return Result{pending: ch}
}

// Resolve waits for a pending result or until ctx is done. It runs on the
// caller's goroutine, so nothing of a chain runs after it has returned.
func (r Result) Resolve(ctx context.Context) (string, error) {
	if r.pending == nil {
		return r.text, nil
	}
	var text string
	select {
	case s, ok := <-r.pending:
		if ok {
			text = s
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if r.then == nil {
		return text, nil
	}
	return r.then(ctx, text)
}

// Transform rewrites a materialized body.
type Transform func(body string) Result

// Func adapts a plain string function.
func Func(fn func(string) string) Transform {
	return func(body string) Result {
		return Immediate(fn(body))
	}
}

// Chain runs transforms in order, feeding each the previous output. Nil
// entries are skipped. Immediate steps run inline; from the first pending
// step on, the rest runs when the result is resolved and stops as soon as
// the resolving context is done.
func Chain(ts ...Transform) Transform {
	var list []Transform
	for _, t := range ts {
		if t != nil {
			list = append(list, t)
		}
	}
	switch len(list) {
	case 0:
		return nil
	case 1:
		return list[0]
	}
	return func(body string) Result {
		for i, t := range list {
			r := t(body)
			if r.pending == nil {
				body = r.text
				continue
			}
			rest := list[i+1:]
			return Result{
				pending: r.pending,
				then: func(ctx context.Context, text string) (string, error) {
					if r.then != nil {
						var err error
						if text, err = r.then(ctx, text); err != nil {
							return "", err
						}
					}
					return runChain(ctx, text, rest)
				},
			}
		}
		return Immediate(body)
	}
}

func runChain(ctx context.Context, body string, list []Transform) (string, error) {
	for _, t := range list {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var err error
		if body, err = t(body).Resolve(ctx); err != nil {
			return "", err
		}
	}
	return body, nil
}

func invoke(ctx context.Context, text string, fn Transform) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fn == nil {
		return text, nil
	}
	return fn(text).Resolve(ctx)
}
