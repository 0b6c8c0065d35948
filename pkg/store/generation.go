package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
)

const headFileName = "HEAD"

// generation is one sealed snapshot of the archive tree.
type generation struct {
	ID         int                  `json:"id"`
	CreatedUTC time.Time            `json:"createdUTC"`
	Entries    map[string]treeEntry `json:"entries"`
}

func generationsPath(root string) string {
	return filepath.Join(root, "generations")
}

func generationFilePath(root string, id int) string {
	return filepath.Join(generationsPath(root), fmt.Sprintf("%08d.json.zst", id))
}

// Commit seals the current in-memory tree as a new generation and advances
// HEAD. A clean tree is a no-op.
func (r *Remote) Commit() error {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	if !r.dirty {
		return nil
	}
	if !r.writable {
		return fmt.Errorf("cannot commit: %w", ErrReadOnly)
	}

	gen := generation{
		ID:         r.head + 1,
		CreatedUTC: time.Now().UTC(),
		Entries:    make(map[string]treeEntry, r.index.Count()),
	}
	r.index.Range(func(key string, entry treeEntry) bool {
		gen.Entries[key] = entry
		return true
	})

	if err := writeGeneration(r.root, &gen); err != nil {
		return err
	}
	if err := writeHead(r.root, gen.ID); err != nil {
		return err
	}

	r.head = gen.ID
	r.dirty = false
	plog.Debug("Sealed archive generation", "archive", r.man.ID, "generation", gen.ID, "entries", len(gen.Entries))
	return nil
}

// Generations lists the sealed generation numbers, oldest first.
func (r *Remote) Generations() ([]int, error) {
	entries, err := os.ReadDir(generationsPath(r.root))
	if err != nil {
		return nil, fmt.Errorf("failed to read generations directory: %w", err)
	}

	var ids []int
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json.zst") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, ".json.zst"))
		if err != nil {
			plog.Warn("Skipping generation file with invalid name", "name", name)
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// Prune deletes all but the newest keep generations, then removes blobs no
// surviving generation references. The current HEAD is always kept.
func (r *Remote) Prune(keep int) error {
	if !r.writable {
		return fmt.Errorf("cannot prune: %w", ErrReadOnly)
	}
	if keep < 1 {
		keep = 1
	}

	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	ids, err := r.Generations()
	if err != nil {
		return err
	}
	if len(ids) <= keep {
		return nil
	}

	doomed := ids[:len(ids)-keep]
	survivors := ids[len(ids)-keep:]

	// Collect every hash still referenced by a surviving generation.
	referenced := make(map[string]struct{})
	for _, id := range survivors {
		gen, err := readGeneration(r.root, id)
		if err != nil {
			return err
		}
		for _, entry := range gen.Entries {
			if entry.Hash != "" {
				referenced[entry.Hash] = struct{}{}
			}
		}
	}

	for _, id := range doomed {
		if id == r.head {
			continue // Never delete the current generation.
		}
		if err := os.Remove(generationFilePath(r.root, id)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete generation %d: %w", id, err)
		}
		plog.Info("Pruned archive generation", "archive", r.man.ID, "generation", id)
	}

	return r.sweepObjects(referenced)
}

// sweepObjects deletes blobs whose hash is not in the referenced set.
func (r *Remote) sweepObjects(referenced map[string]struct{}) error {
	return filepath.WalkDir(objectsPath(r.root), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		hash := strings.TrimSuffix(strings.TrimSuffix(name, zstdBlobExt), gzipBlobExt)
		if _, ok := referenced[hash]; ok {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete unreferenced blob %s: %w", hash, err)
		}
		return nil
	})
}

func writeGeneration(root string, gen *generation) error {
	dir := generationsPath(root)
	tmp, err := os.CreateTemp(dir, ".gen-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary generation file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to create generation writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(gen); err != nil {
		zw.Close()
		tmp.Close()
		return fmt.Errorf("failed to encode generation %d: %w", gen.ID, err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to finalize generation %d: %w", gen.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close generation file: %w", err)
	}
	if err := os.Rename(tmpPath, generationFilePath(root, gen.ID)); err != nil {
		return fmt.Errorf("failed to move generation %d into place: %w", gen.ID, err)
	}
	tmpPath = ""
	return nil
}

func readGeneration(root string, id int) (*generation, error) {
	f, err := os.Open(generationFilePath(root, id))
	if err != nil {
		return nil, fmt.Errorf("failed to open generation %d: %w", id, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open generation %d reader: %w", id, err)
	}
	defer zr.Close()

	var gen generation
	if err := json.NewDecoder(zr).Decode(&gen); err != nil {
		return nil, fmt.Errorf("generation %d is corrupt: %w", id, err)
	}
	return &gen, nil
}

// writeHead atomically updates the HEAD pointer.
func writeHead(root string, id int) error {
	tmp, err := os.CreateTemp(root, ".head-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary HEAD file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := fmt.Fprintf(tmp, "%d\n", id); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write HEAD: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close HEAD file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(root, headFileName)); err != nil {
		return fmt.Errorf("failed to move HEAD into place: %w", err)
	}
	tmpPath = ""
	return nil
}

func readHead(root string) (int, error) {
	data, err := os.ReadFile(filepath.Join(root, headFileName))
	if os.IsNotExist(err) {
		return 0, nil // Archive created but never committed.
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read HEAD: %w", err)
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("HEAD is corrupt: %w", err)
	}
	return id, nil
}
