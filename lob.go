package pgsql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"

	"go.uber.org/zap"
)

var locatorPattern = regexp.MustCompile(`^(\w+://)(.*)$`)

// isLOBCandidate reports whether a bound value is materialized as a large
// object before quoting.
func isLOBCandidate(opts *Options, value any, typ Type) bool {
	if _, ok := value.(io.Reader); ok {
		return true
	}
	return typ.IsLOB() || opts.LOBAllowURLInclude
}

// materializeLOB reads a LOB source fully into memory. Sources are an
// io.Reader supplied by the caller (left open) or a locator string such as
// "file:///tmp/data.bin" or an http(s) URL (opened and closed here). Any
// other value is returned unchanged.
func materializeLOB(ctx context.Context, opts *Options, name string, value any, typ Type) (any, error) {
	reader, isReader := value.(io.Reader)
	if !isReader {
		locator, ok := value.(string)
		if !ok {
			return value, nil
		}
		match := locatorPattern.FindStringSubmatch(locator)
		if match == nil {
			return value, nil
		}
		rc, err := openLocator(ctx, match[1], match[2], locator)
		if err != nil {
			if opts.LOBStrictOpen {
				return nil, &Error{Kind: KindLOBSource, Op: "execute", Message: fmt.Sprintf("cannot open LOB source for placeholder %s", name), Err: err}
			}
			opts.logger().Warn("binding empty LOB content, source could not be opened",
				zap.String("placeholder", name), zap.String("locator", locator), zap.Error(err))
			return lobValue(nil, typ), nil
		}
		defer rc.Close()
		reader = rc
	}
	data, err := readChunked(reader, opts.lobBufferLength())
	if err != nil {
		return nil, &Error{Kind: KindLOBSource, Op: "execute", Message: fmt.Sprintf("cannot read LOB source for placeholder %s", name), Err: err}
	}
	return lobValue(data, typ), nil
}

func openLocator(ctx context.Context, scheme, rest, locator string) (io.ReadCloser, error) {
	switch scheme {
	case "file://":
		return os.Open(rest)
	case "http://", "https://":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	}
	return nil, errors.New("unsupported locator scheme " + scheme)
}

// readChunked reads r to EOF in chunks of size bytes.
func readChunked(r io.Reader, size int) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, size)
	for {
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// lobValue types materialised content: text unless a binary type is
// declared, so an untyped reader quotes as a string literal.
func lobValue(data []byte, typ Type) any {
	if typ == TypeNone || typ.textual() {
		return string(data)
	}
	if data == nil {
		return []byte{}
	}
	return data
}
