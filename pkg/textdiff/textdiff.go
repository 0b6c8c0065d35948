// Package textdiff compares one file across two stores, line by line. It is
// strictly a text facility: binary content is rejected rather than diffed,
// and a size ceiling keeps line splitting from eating unbounded memory.
package textdiff

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/pixelgardenlabs/arcmirror/pkg/store"
	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// ErrUnsupportedEncoding is returned when either side is binary, by file
// name or by content sniffing.
var ErrUnsupportedEncoding = errors.New("content is not text")

// ErrContentTooLarge is returned when either side exceeds MaxCompareSize.
var ErrContentTooLarge = errors.New("file too large for line comparison")

// MaxCompareSize is the per-file ceiling for line-based comparison.
const MaxCompareSize = 4 << 20

// sniffLen bounds how many leading bytes are inspected for binary content.
const sniffLen = 8000

// binaryExtensions lists file extensions that are binary beyond doubt. An
// extension not in the list decides nothing; content sniffing settles it.
var binaryExtensions = map[string]struct{}{
	".7z": {}, ".avi": {}, ".bin": {}, ".bmp": {}, ".dll": {}, ".doc": {},
	".docx": {}, ".exe": {}, ".flac": {}, ".gif": {}, ".gz": {}, ".ico": {},
	".jpeg": {}, ".jpg": {}, ".mkv": {}, ".mov": {}, ".mp3": {}, ".mp4": {},
	".ogg": {}, ".pdf": {}, ".png": {}, ".rar": {}, ".so": {}, ".tar": {},
	".wav": {}, ".webm": {}, ".webp": {}, ".woff": {}, ".woff2": {},
	".xls": {}, ".xlsx": {}, ".zip": {}, ".zst": {},
}

// Compare diffs one file between two stores at line granularity and returns
// the edit sequence that turns the left version into the right one.
func Compare(left, right store.Store, filePath string) ([]diffmatchpatch.Diff, error) {
	key := util.NormalizePath(filePath)
	if binary, known := binaryByName(key); known && binary {
		return nil, fmt.Errorf("%s: %w", key, ErrUnsupportedEncoding)
	}

	leftData, err := readSide(left, key)
	if err != nil {
		return nil, err
	}
	rightData, err := readSide(right, key)
	if err != nil {
		return nil, err
	}

	return Lines(string(leftData), string(rightData)), nil
}

// Lines computes a line-mode diff between two text blobs.
func Lines(left, right string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	leftRunes, rightRunes, lineIndex := dmp.DiffLinesToRunes(left, right)
	diffs := dmp.DiffMainRunes(leftRunes, rightRunes, false)
	return dmp.DiffCharsToLines(diffs, lineIndex)
}

func readSide(s store.Store, key string) ([]byte, error) {
	meta, err := s.Stat(key)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s on %s: %w", key, s.Root(), err)
	}
	if meta.Dir {
		return nil, fmt.Errorf("%s on %s is a directory", key, s.Root())
	}
	if meta.Size > MaxCompareSize {
		return nil, fmt.Errorf("%s on %s (%d bytes): %w", key, s.Root(), meta.Size, ErrContentTooLarge)
	}
	data, err := s.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s on %s: %w", key, s.Root(), err)
	}
	if isContentBinary(data) {
		return nil, fmt.Errorf("%s on %s: %w", key, s.Root(), ErrUnsupportedEncoding)
	}
	return data, nil
}

// binaryByName classifies a file by extension. The second return value
// reports whether the extension decided anything at all.
func binaryByName(key string) (binary, known bool) {
	ext := strings.ToLower(path.Ext(key))
	if ext == "" {
		return false, false
	}
	_, binary = binaryExtensions[ext]
	return binary, binary
}

// isContentBinary applies the git heuristic: a NUL byte in the leading
// window marks the content as binary.
func isContentBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}
