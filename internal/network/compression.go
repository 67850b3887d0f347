// File: internal/network/compression.go
package network

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is advertised on requests that do not set their own.
const AcceptEncoding = "br, gzip"

var brotliReaderPool = sync.Pool{
	New: func() interface{} {
		return brotli.NewReader(nil)
	},
}

var emptyReader = strings.NewReader("")

// CompressionMiddleware negotiates br or gzip with asset hosts and decodes
// the body before handing the response back. Setting Accept-Encoding by hand
// turns off the transport's own gzip handling, so both are decoded here.
type CompressionMiddleware struct {
	Transport http.RoundTripper
}

// NewCompressionMiddleware wraps transport; nil means http.DefaultTransport.
func NewCompressionMiddleware(transport http.RoundTripper) *CompressionMiddleware {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &CompressionMiddleware{Transport: transport}
}

// RoundTrip implements http.RoundTripper.
func (cm *CompressionMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", AcceptEncoding)
	}

	resp, err := cm.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := DecompressResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

type decodedBody struct {
	io.Reader
	decoder      io.Closer
	originalBody io.ReadCloser
	release      func()
}

func (b *decodedBody) Close() error {
	var err1 error
	if b.decoder != nil {
		err1 = b.decoder.Close()
	}
	if b.release != nil {
		b.release()
		b.release = nil
	}
	return errors.Join(err1, b.originalBody.Close())
}

// DecompressResponse replaces resp.Body with a decoding reader for each
// Content-Encoding layer, last applied first. On error the body may be
// partially consumed and the caller must discard the response.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		body := &decodedBody{originalBody: resp.Body}

		switch strings.ToLower(strings.TrimSpace(encodings[i])) {
		case "gzip":
			zr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip initialization error: %w", err)
			}
			body.Reader, body.decoder = zr, zr
		case "br":
			br := brotliReaderPool.Get().(*brotli.Reader)
			if err := br.Reset(resp.Body); err != nil {
				brotliReaderPool.Put(br)
				return fmt.Errorf("brotli initialization error: %w", err)
			}
			body.Reader = br
			body.release = func() {
				_ = br.Reset(emptyReader)
				brotliReaderPool.Put(br)
			}
		case "identity", "":
			continue
		default:
			return fmt.Errorf("unsupported Content-Encoding layer: %s", encodings[i])
		}
		resp.Body = body
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}
