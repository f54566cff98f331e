package compression

import (
	"bytes"
	"strings"
	"testing"
)

func TestZstdRoundTrip(t *testing.T) {
	original := strings.Repeat("row version payload ", 1000)

	var compressed bytes.Buffer
	n, err := CompressZstd(strings.NewReader(original), &compressed)
	if err != nil {
		t.Fatalf("CompressZstd failed: %v", err)
	}
	if n != int64(compressed.Len()) {
		t.Fatalf("reported size %d, buffer has %d", n, compressed.Len())
	}
	if compressed.Len() >= len(original) {
		t.Fatalf("repetitive input did not shrink: %d >= %d", compressed.Len(), len(original))
	}

	var decompressed bytes.Buffer
	if _, err := DecompressZstd(&compressed, &decompressed); err != nil {
		t.Fatalf("DecompressZstd failed: %v", err)
	}
	if decompressed.String() != original {
		t.Fatal("round trip mismatch")
	}
}

func TestGzipRoundTrip(t *testing.T) {
	original := strings.Repeat("row version payload ", 1000)

	var compressed bytes.Buffer
	n, err := CompressGzip(strings.NewReader(original), &compressed)
	if err != nil {
		t.Fatalf("CompressGzip failed: %v", err)
	}
	if n != int64(compressed.Len()) {
		t.Fatalf("reported size %d, buffer has %d", n, compressed.Len())
	}

	var decompressed bytes.Buffer
	if _, err := DecompressGzip(&compressed, &decompressed); err != nil {
		t.Fatalf("DecompressGzip failed: %v", err)
	}
	if decompressed.String() != original {
		t.Fatal("round trip mismatch")
	}
}

func TestNewZstdReader(t *testing.T) {
	original := "snapshot 775:775: visibility"

	var compressed bytes.Buffer
	if _, err := CompressZstd(strings.NewReader(original), &compressed); err != nil {
		t.Fatalf("CompressZstd failed: %v", err)
	}

	r, err := NewZstdReader(&compressed)
	if err != nil {
		t.Fatalf("NewZstdReader failed: %v", err)
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out.String() != original {
		t.Fatalf("got %q, want %q", out.String(), original)
	}
}
