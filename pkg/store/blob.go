package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/pixelgardenlabs/arcmirror/pkg/pool"
)

// copyBuffers feeds the decompression streams. Sized for one filesystem
// block up to the parallel-compression threshold.
var copyBuffers = pool.NewBucketedBufferPool(4096, parallelCompressionThreshold)

// Blobs are compressed on disk. Small blobs use zstd; blobs at or above
// parallelCompressionThreshold use pgzip, which splits the input across
// cores. The extension records the codec so readers never need to sniff.
const (
	zstdBlobExt = ".zst"
	gzipBlobExt = ".gz"

	parallelCompressionThreshold = 4 << 20 // 4 MiB
)

func objectsPath(root string) string {
	return filepath.Join(root, "objects")
}

// blobBasePath returns the blob's path without its codec extension.
// Blobs are fanned out over two-character prefix directories so a single
// directory never accumulates the entire object store.
func blobBasePath(root, hash string) string {
	return filepath.Join(objectsPath(root), hash[:2], hash)
}

// writeBlob stores data under its content address and returns the hash.
// A blob that already exists is never rewritten; identical content across
// files and generations is stored once.
func (r *Remote) writeBlob(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	base := blobBasePath(r.root, hash)
	for _, ext := range []string{zstdBlobExt, gzipBlobExt} {
		if _, err := os.Lstat(base + ext); err == nil {
			return hash, nil // Already stored.
		}
	}

	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	ext := zstdBlobExt
	if len(data) >= parallelCompressionThreshold {
		ext = gzipBlobExt
	}

	tmp, err := os.CreateTemp(filepath.Dir(base), ".blob-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary blob file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if err := compressInto(tmp, data, ext); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close blob file: %w", err)
	}
	if err := os.Rename(tmpPath, base+ext); err != nil {
		return "", fmt.Errorf("failed to move blob into place: %w", err)
	}
	tmpPath = ""
	return hash, nil
}

// readBlob loads and decompresses a blob by content address.
func (r *Remote) readBlob(hash string) ([]byte, error) {
	base := blobBasePath(r.root, hash)
	for _, ext := range []string{zstdBlobExt, gzipBlobExt} {
		f, err := os.Open(base + ext)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open blob %s: %w", hash, err)
		}
		defer f.Close()
		return decompressFrom(f, ext)
	}
	return nil, fmt.Errorf("blob %s is missing from the object store", hash)
}

func compressInto(w io.Writer, data []byte, ext string) error {
	switch ext {
	case gzipBlobExt:
		zw := pgzip.NewWriter(w)
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return fmt.Errorf("failed to compress blob: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finalize compressed blob: %w", err)
		}
	default:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return fmt.Errorf("failed to compress blob: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finalize compressed blob: %w", err)
		}
	}
	return nil
}

func decompressFrom(r io.Reader, ext string) ([]byte, error) {
	switch ext {
	case gzipBlobExt:
		zr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed blob: %w", err)
		}
		defer zr.Close()
		chunk := copyBuffers.Get(64 << 10)
		defer copyBuffers.Put(chunk)
		var buf bytes.Buffer
		if _, err := io.CopyBuffer(&buf, zr, *chunk); err != nil {
			return nil, fmt.Errorf("failed to decompress blob: %w", err)
		}
		return buf.Bytes(), nil
	default:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed blob: %w", err)
		}
		defer zr.Close()
		data, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress blob: %w", err)
		}
		return data, nil
	}
}
