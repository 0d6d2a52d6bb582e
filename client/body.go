package client

import (
	"context"
	"io"

	"github.com/reqtrace/reqtrace/tracing"
)

// chunkSentReader wraps an outgoing request body so every chunk the
// transport reads fires request_chunk_sent. A listener error becomes the
// read error, which aborts the upload.
type chunkSentReader struct {
	ctx   context.Context
	a     *attempt
	inner io.Reader
}

func newChunkSentReader(
	ctx context.Context, a *attempt, inner io.Reader,
) *chunkSentReader {
	return &chunkSentReader{ctx: ctx, a: a, inner: inner}
}

func (r *chunkSentReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		method, u, _ := r.a.target()
		chunk := p[:n]
		if sendErr := r.a.fire(func(d tracing.Dispatcher) error {
			return d.SendRequestChunkSent(r.ctx, method, u, chunk)
		}); sendErr != nil {
			return 0, sendErr
		}
	}
	return n, err
}

// noNilReader keeps a nil *chunkSentReader from becoming a non-nil io.Reader
// interface value on the request.
func noNilReader(r *chunkSentReader) io.Reader {
	if r == nil {
		return nil
	}
	return r
}

// chunkReceivedBody wraps a response body so every chunk the caller reads
// fires response_chunk_received. A listener error becomes the read error.
type chunkReceivedBody struct {
	ctx   context.Context
	a     *attempt
	inner io.ReadCloser
}

func newChunkReceivedBody(
	ctx context.Context, a *attempt, inner io.ReadCloser,
) io.ReadCloser {
	return &chunkReceivedBody{ctx: ctx, a: a, inner: inner}
}

func (b *chunkReceivedBody) Read(p []byte) (int, error) {
	n, err := b.inner.Read(p)
	if n > 0 {
		method, u, _ := b.a.target()
		chunk := p[:n]
		if sendErr := b.a.fire(func(d tracing.Dispatcher) error {
			return d.SendResponseChunkReceived(b.ctx, method, u, chunk)
		}); sendErr != nil {
			return 0, sendErr
		}
	}
	return n, err
}

func (b *chunkReceivedBody) Close() error {
	return b.inner.Close()
}

// bodyCloser runs a hook when the response body is closed.
type bodyCloser struct {
	io.ReadCloser
	onClose func()
}

func (b *bodyCloser) Close() error {
	err := b.ReadCloser.Close()
	if b.onClose != nil {
		b.onClose()
		b.onClose = nil
	}
	return err
}
