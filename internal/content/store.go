package content

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"PeerShare/internal/logger"
	"PeerShare/internal/storage"
)

var (
	// ErrNotFound is returned when no file is stored under a hash.
	ErrNotFound = errors.New("file not found locally")

	// ErrHashMismatch is returned when a caller-supplied hash is not the SHA-256 of the data.
	ErrHashMismatch = errors.New("hash does not match content")

	// ErrCorrupt is returned when a stored blob fails its checksum or cannot be decoded.
	ErrCorrupt = errors.New("stored blob is corrupt")
)

// blobPrefix namespaces blob keys in the underlying storage.
var blobPrefix = []byte("blob:")

// StoredFile is a file held by the store. Data is a private copy.
type StoredFile struct {
	Hash string // Hash is the lowercase hex SHA-256 of Data
	Name string // Name is the name given at upload
	Data []byte // Data is the file content
}

// FileInfo describes a stored file without its content.
type FileInfo struct {
	Hash string `json:"hash"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

// entry is the index record for one stored file.
type entry struct {
	name     string   // name is the file name
	size     int      // size is the uncompressed length
	checksum [32]byte // checksum is the blake3 sum of the compressed blob
}

// Store is a content-addressed file store.
// The index lives in a map guarded by mu; blobs are zstd-compressed into storage.
// mu is only held for map access, never while compressing or touching storage.
type Store struct {
	db  *storage.Storage // db holds the compressed blobs
	enc *zstd.Encoder    // enc is safe for concurrent EncodeAll
	dec *zstd.Decoder    // dec is safe for concurrent DecodeAll

	closeOnce sync.Once // closeOnce releases the codec once

	mu    sync.Mutex       // mu protects files
	files map[string]entry // files maps hash to index entry
}

// HashOf returns the lowercase hex SHA-256 digest of data.
func HashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// New creates a store on an in-memory storage engine.
func New() (*Store, error) {
	db, err := storage.NewMemory()
	if err != nil {
		return nil, fmt.Errorf("open blob storage:\n%w", err)
	}

	s, err := NewWithStorage(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// NewWithStorage creates a store on the given storage engine. The store takes ownership of db.
func NewWithStorage(db *storage.Storage) (*Store, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}

	return &Store{
		db:    db,
		enc:   enc,
		dec:   dec,
		files: make(map[string]entry),
	}, nil
}

// Put stores data under its SHA-256 hash and returns the hash.
// Storing the same content again replaces the recorded name.
func (s *Store) Put(name string, data []byte) (string, error) {
	hash := HashOf(data)

	if err := s.write(hash, name, data); err != nil {
		return "", err
	}

	return hash, nil
}

// Insert stores data under a hash supplied by the caller, typically content
// that arrived from the transport. The hash must match the data.
func (s *Store) Insert(hash, name string, data []byte) error {
	if got := HashOf(data); got != hash {
		return fmt.Errorf("insert %s: %w (computed %s)", hash, ErrHashMismatch, got)
	}

	return s.write(hash, name, data)
}

// write compresses and persists the blob, then publishes the index entry.
func (s *Store) write(hash, name string, data []byte) error {
	blob := s.enc.EncodeAll(data, make([]byte, 0, len(data)/2+64))

	if err := s.db.Set(blobKey(hash), blob); err != nil {
		return fmt.Errorf("store blob %s:\n%w", hash, err)
	}

	s.mu.Lock()
	_, existed := s.files[hash]
	s.files[hash] = entry{
		name:     name,
		size:     len(data),
		checksum: blake3.Sum256(blob),
	}
	s.mu.Unlock()

	logger.Debug("content stored", "hash", hash, "name", name, "size", len(data), "compressed", len(blob), "replaced", existed)

	return nil
}

// Get returns the file stored under hash.
func (s *Store) Get(hash string) (StoredFile, error) {
	s.mu.Lock()
	e, ok := s.files[hash]
	s.mu.Unlock()

	if !ok {
		return StoredFile{}, ErrNotFound
	}

	blob, err := s.db.Get(blobKey(hash))
	if err != nil {
		return StoredFile{}, fmt.Errorf("read blob %s:\n%w", hash, err)
	}

	if blob == nil || blake3.Sum256(blob) != e.checksum {
		return StoredFile{}, fmt.Errorf("read blob %s: %w", hash, ErrCorrupt)
	}

	data, err := s.dec.DecodeAll(blob, make([]byte, 0, e.size))
	if err != nil {
		return StoredFile{}, fmt.Errorf("decode blob %s: %w: %v", hash, ErrCorrupt, err)
	}

	if len(data) != e.size {
		return StoredFile{}, fmt.Errorf("decode blob %s: %w: size %d, want %d", hash, ErrCorrupt, len(data), e.size)
	}

	return StoredFile{Hash: hash, Name: e.name, Data: data}, nil
}

// Contains reports whether a file is stored under hash.
func (s *Store) Contains(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.files[hash]

	return ok
}

// List returns every stored file ordered by name, then hash.
func (s *Store) List() []FileInfo {
	s.mu.Lock()
	infos := make([]FileInfo, 0, len(s.files))
	for hash, e := range s.files {
		infos = append(infos, FileInfo{Hash: hash, Name: e.name, Size: e.size})
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].Hash < infos[j].Hash
	})

	return infos
}

// Len returns the number of stored files.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.files)
}

// Verify checks every blob against its index entry and returns the hashes
// that are missing or fail their checksum, sorted.
func (s *Store) Verify() ([]string, error) {
	s.mu.Lock()
	pending := make(map[string][32]byte, len(s.files))
	for hash, e := range s.files {
		pending[hash] = e.checksum
	}
	s.mu.Unlock()

	var bad []string

	err := s.db.IteratePrefix(blobPrefix, func(key, value []byte) error {
		hash := string(key[len(blobPrefix):])

		checksum, ok := pending[hash]
		if !ok {
			return nil
		}
		delete(pending, hash)

		if blake3.Sum256(value) != checksum {
			bad = append(bad, hash)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan blobs:\n%w", err)
	}

	for hash := range pending {
		bad = append(bad, hash)
	}
	sort.Strings(bad)

	if len(bad) > 0 {
		logger.Warn("content verification failed", "corrupt", len(bad))
	}

	return bad, nil
}

// Close releases the codec and the storage engine. Later calls are no-ops.
func (s *Store) Close() error {
	var err error

	s.closeOnce.Do(func() {
		s.enc.Close()
		s.dec.Close()
		err = s.db.Close()
	})

	return err
}

// blobKey returns the storage key for a hash.
func blobKey(hash string) []byte {
	key := make([]byte, 0, len(blobPrefix)+len(hash))
	key = append(key, blobPrefix...)

	return append(key, hash...)
}
