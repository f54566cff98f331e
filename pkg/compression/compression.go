package compression

import (
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Stream helpers used when archiving rotated journal segments. Zstd is the
// archive format; the gzip pair exists for comparing archive sizes.

// CompressGzip compresses r into w and returns the compressed size.
func CompressGzip(r io.Reader, w io.Writer) (int64, error) {
	counter := &byteCounter{w: w}
	gw := gzip.NewWriter(counter)

	if _, err := io.Copy(gw, r); err != nil {
		gw.Close()
		return 0, err
	}
	if err := gw.Close(); err != nil {
		return 0, err
	}

	return counter.Count(), nil
}

// DecompressGzip decompresses r into w and returns the decompressed size.
func DecompressGzip(r io.Reader, w io.Writer) (int64, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return 0, err
	}
	defer gr.Close()

	return io.Copy(w, gr)
}

// CompressZstd compresses r into w and returns the compressed size.
func CompressZstd(r io.Reader, w io.Writer) (int64, error) {
	counter := &byteCounter{w: w}
	enc, err := zstd.NewWriter(counter)
	if err != nil {
		return 0, err
	}

	if _, err := io.Copy(enc, r); err != nil {
		enc.Close()
		return 0, err
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}

	return counter.Count(), nil
}

// DecompressZstd decompresses r into w and returns the decompressed size.
func DecompressZstd(r io.Reader, w io.Writer) (int64, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, err
	}
	defer dec.Close()

	return io.Copy(w, dec)
}

// NewZstdReader wraps r for streaming decompression. The caller must Close
// the returned reader.
func NewZstdReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

type byteCounter struct {
	w     io.Writer
	count int64
}

func (c *byteCounter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}

func (c *byteCounter) Count() int64 { return c.count }
