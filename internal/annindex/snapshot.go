package annindex

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"newsradar/internal/logger"
)

const (
	indexFileName   = "index.bin"
	mappingFileName = "mapping.json"

	indexMagic   = "ANNX"
	indexVersion = uint32(1)
)

// Snapshot writes the index and its ordinal mapping to disk. Both files are
// written to a temp path and renamed into place so a crash mid-write never
// leaves a torn snapshot.
func (ix *Index) Snapshot() error {
	ix.mu.Lock()
	vectors := make([][]float32, len(ix.vectors))
	copy(vectors, ix.vectors)
	entries := make([]Entry, len(ix.entries))
	copy(entries, ix.entries)
	dim := ix.dim
	path := ix.path
	ix.mu.Unlock()

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	if err := writeIndexFile(filepath.Join(path, indexFileName), dim, vectors); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	if err := writeMappingFile(filepath.Join(path, mappingFileName), entries); err != nil {
		return fmt.Errorf("failed to write mapping file: %w", err)
	}

	logger.Info("Saved ANN index snapshot", "vectors", len(vectors), "path", path)
	return nil
}

// Load restores an index from disk. Missing files yield an empty index; a
// corrupt or inconsistent snapshot is discarded and an empty index is
// returned so the caller can rebuild from the article store.
func Load(dim int, path string, snapshotEvery int) *Index {
	ix := New(dim, path, snapshotEvery)

	vectors, fileDim, err := readIndexFile(filepath.Join(path, indexFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			logRestoreWarning(path, err)
		}
		return ix
	}
	entries, err := readMappingFile(filepath.Join(path, mappingFileName))
	if err != nil {
		logRestoreWarning(path, err)
		return ix
	}

	if fileDim != dim {
		logRestoreWarning(path, fmt.Errorf("dimension mismatch: snapshot has %d, configured %d", fileDim, dim))
		return ix
	}
	if len(vectors) != len(entries) {
		// The two files are written separately; a crash between writes can
		// leave them out of step. Keep the consistent prefix.
		n := len(vectors)
		if len(entries) < n {
			n = len(entries)
		}
		logger.Warn("ANN snapshot files disagree, truncating to common prefix",
			"vectors", len(vectors), "entries", len(entries), "kept", n)
		vectors = vectors[:n]
		entries = entries[:n]
	}

	ix.vectors = vectors
	ix.entries = entries
	for _, entry := range entries {
		ix.articleIDs[entry.ArticleID] = struct{}{}
	}
	logger.Info("Restored ANN index", "vectors", len(vectors), "path", path)
	return ix
}

func writeIndexFile(path string, dim int, vectors [][]float32) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, 16+len(vectors)*dim*4)
	buf = append(buf, indexMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, indexVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dim))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(vectors)))
	for _, vec := range vectors {
		for _, v := range vec {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}

	if _, err := f.Write(buf); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readIndexFile(path string) ([][]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 16 || string(data[:4]) != indexMagic {
		return nil, 0, fmt.Errorf("bad index header")
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != indexVersion {
		return nil, 0, fmt.Errorf("unsupported index version %d", version)
	}
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	count := int(binary.LittleEndian.Uint32(data[12:16]))
	if dim <= 0 || count < 0 {
		return nil, 0, fmt.Errorf("bad index dimensions: dim=%d count=%d", dim, count)
	}
	if len(data) != 16+count*dim*4 {
		return nil, 0, fmt.Errorf("index file truncated: expected %d bytes, got %d", 16+count*dim*4, len(data))
	}

	vectors := make([][]float32, count)
	offset := 16
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
			offset += 4
		}
		vectors[i] = vec
	}
	return vectors, dim, nil
}

func writeMappingFile(path string, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readMappingFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("bad mapping file: %w", err)
	}
	return entries, nil
}
