package flat

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"go.uber.org/zap"

	"docqa/internal/vectorstore"
)

// On-disk layout: <base>.index holds the raw vectors, <base>_meta.json holds
// the id-to-record map with string-encoded keys.
//
// Index file format (little-endian): magic "DQIX", version u16, dimension
// u32, count u64, then count*dimension float32 values.
const (
	indexMagic   = "DQIX"
	indexVersion = uint16(1)

	indexSuffix = ".index"
	metaSuffix  = "_meta.json"
)

func (s *Store) indexPath() string { return s.basePath + indexSuffix }
func (s *Store) metaPath() string  { return s.basePath + metaSuffix }

func (s *Store) artifactsPresent() (index, meta bool) {
	_, idxErr := os.Stat(s.indexPath())
	_, metaErr := os.Stat(s.metaPath())
	return idxErr == nil, metaErr == nil
}

// Save serializes the index and metadata map to their artifacts. Each file is
// written to a temporary sibling and renamed into place, so a failure partway
// through never corrupts a previously saved artifact. The write lock also
// serializes concurrent Save calls, which share the temp file paths.
func (s *Store) Save() error {
	if s.basePath == "" {
		return fmt.Errorf("no storage location configured: %w", vectorstore.ErrNotInitialized)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeIndexFile(); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	if err := s.writeMetaFile(); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	s.logger.Info("saved vector store",
		zap.String("base_path", s.basePath), zap.Int("size", s.size()))
	return nil
}

func (s *Store) writeIndexFile() error {
	count := uint64(s.size())
	buf := make([]byte, 0, 4+2+4+8+len(s.vectors)*4)
	buf = append(buf, indexMagic...)
	buf = binary.LittleEndian.AppendUint16(buf, indexVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.dimension))
	buf = binary.LittleEndian.AppendUint64(buf, count)
	for _, f := range s.vectors {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return atomicWrite(s.indexPath(), buf)
}

func (s *Store) writeMetaFile() error {
	encoded := make(map[string]record, len(s.records))
	for id, rec := range s.records {
		encoded[strconv.FormatInt(id, 10)] = rec
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return err
	}
	return atomicWrite(s.metaPath(), data)
}

// atomicWrite writes data to a temporary sibling of path and renames it into
// place. The temp file stays in the target directory so the rename never
// crosses filesystems.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Load restores the store from its artifacts, replacing current contents.
// It fails with ErrNotFound if either artifact is absent. A size disagreement
// between the two files is logged as a warning, not an error, since it
// indicates a previous non-atomic save.
func (s *Store) Load() error {
	if s.basePath == "" {
		return fmt.Errorf("no storage location configured: %w", vectorstore.ErrNotInitialized)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dimension, vectors, err := readIndexFile(s.indexPath())
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	records, err := readMetaFile(s.metaPath())
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	if dimension != s.dimension {
		// The file's native dimension wins; the configured value only applies
		// to fresh stores.
		s.logger.Warn("loaded index dimension differs from configured dimension",
			zap.Int("loaded", dimension), zap.Int("configured", s.dimension))
	}

	count := len(vectors) / dimension
	if count != len(records) {
		s.logger.Warn("loaded index size does not match metadata count",
			zap.Int("index_size", count), zap.Int("metadata_size", len(records)))
	}
	for i := 0; i < count; i++ {
		if _, ok := records[int64(i)]; !ok {
			s.logger.Warn("metadata keys do not form a contiguous range",
				zap.Int64("missing_id", int64(i)))
			break
		}
	}

	s.dimension = dimension
	s.vectors = vectors
	s.records = records
	s.logger.Info("loaded vector store",
		zap.String("base_path", s.basePath),
		zap.Int("size", count), zap.Int("dimension", dimension))
	return nil
}

func readIndexFile(path string) (int, []float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, fmt.Errorf("%w: %s", vectorstore.ErrNotFound, path)
		}
		return 0, nil, err
	}
	header := 4 + 2 + 4 + 8
	if len(data) < header {
		return 0, nil, fmt.Errorf("index file too short: %d bytes", len(data))
	}
	if string(data[:4]) != indexMagic {
		return 0, nil, fmt.Errorf("bad index magic %q", data[:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != indexVersion {
		return 0, nil, fmt.Errorf("unsupported index version %d", v)
	}
	dimension := int(binary.LittleEndian.Uint32(data[6:10]))
	count := int(binary.LittleEndian.Uint64(data[10:18]))
	if dimension <= 0 {
		return 0, nil, fmt.Errorf("invalid dimension %d in index file", dimension)
	}
	want := count * dimension * 4
	body := data[header:]
	if len(body) != want {
		return 0, nil, fmt.Errorf("index body length %d, want %d", len(body), want)
	}
	vectors := make([]float32, count*dimension)
	for i := range vectors {
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	return dimension, vectors, nil
}

func readMetaFile(path string) (map[int64]record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", vectorstore.ErrNotFound, path)
		}
		return nil, err
	}
	var encoded map[string]record
	if err := json.Unmarshal(data, &encoded); err != nil {
		return nil, err
	}
	records := make(map[int64]record, len(encoded))
	for key, rec := range encoded {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-integer metadata key %q: %w", key, err)
		}
		records[id] = rec
	}
	return records, nil
}
