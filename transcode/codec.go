package transcode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Encoding is a Content-Encoding token.
type Encoding string

const (
	Identity Encoding = "identity"
	Gzip     Encoding = "gzip"
	Deflate  Encoding = "deflate"
	Brotli   Encoding = "br"
)

var ErrUnsupportedEncoding = errors.New("unsupported content-encoding")

// Codec builds the decoder and encoder streams of one content-encoding.
// Streams are created per response and never shared.
type Codec struct {
	Name      Encoding
	NewReader func(r io.Reader) (io.ReadCloser, error)
	NewWriter func(w io.Writer) (io.WriteCloser, error)
}

var codecs = map[Encoding]*Codec{
	Gzip: {
		Name: Gzip,
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			zr, err := gzip.NewReader(r)
			if err != nil {
				return nil, err
			}
			// one member per body, anything after it is drained by the caller
			zr.Multistream(false)
			return zr, nil
		},
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzip.DefaultCompression)
		},
	},
	// http "deflate" is the zlib format (RFC 9110 section 8.4.1.2)
	Deflate: {
		Name:      Deflate,
		NewReader: zlib.NewReader,
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return zlib.NewWriterLevel(w, zlib.DefaultCompression)
		},
	},
	Brotli: {
		Name: Brotli,
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(brotli.NewReader(r)), nil
		},
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
		},
	},
}

// ParseEncoding normalizes a header value or token.
func ParseEncoding(token string) Encoding {
	return Encoding(strings.ToLower(strings.TrimSpace(token)))
}

// Lookup returns the codec registered for token. An empty token and
// "identity" have no codec: Lookup returns nil, nil and the body is
// handled as plain bytes.
func Lookup(token string) (*Codec, error) {
	enc := ParseEncoding(token)
	if enc == "" || enc == Identity {
		return nil, nil
	}
	c, ok := codecs[enc]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, token)
	}
	return c, nil
}

// Decode decompresses a fully buffered body.
func (c *Codec) Decode(in []byte) ([]byte, error) {
	zr, err := c.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode compresses a fully buffered body.
func (c *Codec) Encode(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := c.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(in); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
