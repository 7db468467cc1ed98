// Package afleveldb contains an [afstore.ChainStore] backed by goleveldb.
package afleveldb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afstore"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key prefixes.
var (
	prefixHeader    = []byte("h:") // h:<hash> -> encoded header
	prefixChild     = []byte("p:") // p:<len(parent)><parent><child> -> empty
	prefixCanonical = []byte("c:") // c:<number> -> hash
	prefixJust      = []byte("j:") // j:<hash> -> raw justification

	keyGenesis   = []byte("m:genesis")
	keyBest      = []byte("m:best")
	keyFinalized = []byte("m:finalized")
)

// ChainStore is an [afstore.ChainStore] persisted in a LevelDB database.
type ChainStore struct {
	db *leveldb.DB

	// Serializes writers.
	// Readers go straight to the database.
	mu sync.Mutex
}

// NewChainStore opens or creates a database in the directory at path.
func NewChainStore(path string) (*ChainStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		NoSync: false,
	})
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}
	return &ChainStore{db: db}, nil
}

// NewInMemChainStore returns a store whose database lives only in memory.
func NewInMemChainStore() (*ChainStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory leveldb: %w", err)
	}
	return &ChainStore{db: db}, nil
}

func (s *ChainStore) Close() error {
	return s.db.Close()
}

func (s *ChainStore) SaveHeader(_ context.Context, h afchain.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.db.Has(headerKey(h.Hash), nil)
	if err != nil {
		return fmt.Errorf("checking header existence: %w", err)
	}
	if exists {
		return afstore.HashAlreadyExistsError{Hash: bytes.Clone(h.Hash)}
	}

	batch := new(leveldb.Batch)

	if h.Number == 0 {
		genesis, err := s.get(keyGenesis)
		if err != nil {
			return err
		}
		if genesis != nil {
			return afstore.GenesisAlreadyExistsError{Existing: genesis}
		}
		batch.Put(keyGenesis, h.Hash)
		batch.Put(keyBest, h.Hash)
		batch.Put(keyFinalized, h.Hash)
		batch.Put(canonicalKey(0), h.Hash)
	} else {
		if err := afstore.CheckParent(s.header, h); err != nil {
			return err
		}
		batch.Put(childKey(h.ParentHash, h.Hash), nil)
	}

	batch.Put(headerKey(h.Hash), encodeHeader(h))

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

func (s *ChainStore) SetBest(_ context.Context, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.header(hash)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	if err := s.setBestInBatch(batch, h); err != nil {
		return err
	}

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("writing best block: %w", err)
	}
	return nil
}

func (s *ChainStore) setBestInBatch(batch *leveldb.Batch, h afchain.Header) error {
	route, err := afstore.CanonicalRoute(s.header, s.canonical, h)
	if err != nil {
		return fmt.Errorf("computing canonical route: %w", err)
	}

	// Canonical keys sort by big-endian height,
	// so everything above the new best is a contiguous range.
	iter := s.db.NewIterator(&util.Range{
		Start: canonicalKey(h.Number + 1),
		Limit: util.BytesPrefix(prefixCanonical).Limit,
	}, nil)
	for iter.Next() {
		batch.Delete(bytes.Clone(iter.Key()))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterating canonical index: %w", err)
	}

	for _, id := range route {
		batch.Put(canonicalKey(id.Number), id.Hash)
	}
	batch.Put(keyBest, h.Hash)
	return nil
}

func (s *ChainStore) Finalize(_ context.Context, hash, justification []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.header(hash)
	if err != nil {
		return err
	}

	finHash, err := s.get(keyFinalized)
	if err != nil {
		return err
	}
	if finHash == nil {
		return afstore.ErrStoreUninitialized
	}
	fin, err := s.header(finHash)
	if err != nil {
		return fmt.Errorf("loading finalized header: %w", err)
	}

	if err := afstore.CheckFinalizable(s.header, fin.ID(), h); err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(justKey(h.Hash), justification)
	batch.Put(keyFinalized, h.Hash)

	canon, err := s.canonical(h.Number)
	if err != nil {
		return err
	}
	if !bytes.Equal(canon, h.Hash) {
		if err := s.setBestInBatch(batch, h); err != nil {
			return err
		}
	}

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("writing finalization: %w", err)
	}
	return nil
}

func (s *ChainStore) HeaderByHash(_ context.Context, hash []byte) (afchain.Header, error) {
	return s.header(hash)
}

func (s *ChainStore) HashByNumber(_ context.Context, number uint64) ([]byte, error) {
	hash, err := s.canonical(number)
	if err != nil {
		return nil, err
	}
	if hash == nil {
		return nil, afchain.HeightUnknownError{Want: number}
	}
	return hash, nil
}

func (s *ChainStore) Children(_ context.Context, hash []byte) ([][]byte, error) {
	prefix := childPrefix(hash)
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var out [][]byte
	for iter.Next() {
		out = append(out, bytes.Clone(iter.Key()[len(prefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterating children: %w", err)
	}
	return out, nil
}

func (s *ChainStore) Justification(_ context.Context, hash []byte) ([]byte, error) {
	raw, err := s.db.Get(justKey(hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, afchain.JustificationUnknownError{Hash: bytes.Clone(hash)}
	}
	if err != nil {
		return nil, fmt.Errorf("loading justification: %w", err)
	}
	return raw, nil
}

func (s *ChainStore) Info(_ context.Context) (afchain.Info, error) {
	// A snapshot so the three heads are mutually consistent.
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return afchain.Info{}, fmt.Errorf("acquiring snapshot: %w", err)
	}
	defer snap.Release()

	get := func(key []byte) (afchain.Header, error) {
		hash, err := snap.Get(key, nil)
		if err != nil {
			if errors.Is(err, leveldb.ErrNotFound) {
				return afchain.Header{}, afstore.ErrStoreUninitialized
			}
			return afchain.Header{}, fmt.Errorf("loading %s: %w", key, err)
		}
		raw, err := snap.Get(headerKey(hash), nil)
		if err != nil {
			return afchain.Header{}, fmt.Errorf("loading header for %s: %w", key, err)
		}
		return decodeHeader(hash, raw)
	}

	g, err := get(keyGenesis)
	if err != nil {
		return afchain.Info{}, err
	}
	b, err := get(keyBest)
	if err != nil {
		return afchain.Info{}, err
	}
	f, err := get(keyFinalized)
	if err != nil {
		return afchain.Info{}, err
	}

	return afchain.Info{
		GenesisHash:     g.Hash,
		BestHash:        b.Hash,
		BestNumber:      b.Number,
		FinalizedHash:   f.Hash,
		FinalizedNumber: f.Number,
	}, nil
}

// header satisfies [afstore.HeaderLookup].
func (s *ChainStore) header(hash []byte) (afchain.Header, error) {
	raw, err := s.db.Get(headerKey(hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return afchain.Header{}, afchain.HashUnknownError{Got: bytes.Clone(hash)}
	}
	if err != nil {
		return afchain.Header{}, fmt.Errorf("loading header %x: %w", hash, err)
	}
	return decodeHeader(bytes.Clone(hash), raw)
}

// canonical satisfies [afstore.CanonicalLookup].
func (s *ChainStore) canonical(number uint64) ([]byte, error) {
	return s.get(canonicalKey(number))
}

// get returns nil without error for a missing key.
func (s *ChainStore) get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", key, err)
	}
	return v, nil
}

func headerKey(hash []byte) []byte {
	return append(bytes.Clone(prefixHeader), hash...)
}

func justKey(hash []byte) []byte {
	return append(bytes.Clone(prefixJust), hash...)
}

func canonicalKey(number uint64) []byte {
	return binary.BigEndian.AppendUint64(bytes.Clone(prefixCanonical), number)
}

// childPrefix is length-prefixed so that one parent hash
// can never be a prefix of another.
func childPrefix(parent []byte) []byte {
	k := binary.BigEndian.AppendUint16(bytes.Clone(prefixChild), uint16(len(parent)))
	return append(k, parent...)
}

func childKey(parent, child []byte) []byte {
	return append(childPrefix(parent), child...)
}

// Header values are:
// number (8 bytes BE) | len(parent) (2 bytes BE) | parent | digest.
func encodeHeader(h afchain.Header) []byte {
	out := make([]byte, 0, 10+len(h.ParentHash)+len(h.Digest))
	out = binary.BigEndian.AppendUint64(out, h.Number)
	out = binary.BigEndian.AppendUint16(out, uint16(len(h.ParentHash)))
	out = append(out, h.ParentHash...)
	return append(out, h.Digest...)
}

func decodeHeader(hash, raw []byte) (afchain.Header, error) {
	if len(raw) < 10 {
		return afchain.Header{}, fmt.Errorf("header %x: value too short (%d bytes)", hash, len(raw))
	}
	h := afchain.Header{
		Hash:   hash,
		Number: binary.BigEndian.Uint64(raw[:8]),
	}
	pLen := int(binary.BigEndian.Uint16(raw[8:10]))
	raw = raw[10:]
	if len(raw) < pLen {
		return afchain.Header{}, fmt.Errorf("header %x: truncated parent hash", hash)
	}
	if pLen > 0 {
		h.ParentHash = bytes.Clone(raw[:pLen])
	}
	if len(raw) > pLen {
		h.Digest = bytes.Clone(raw[pLen:])
	}
	return h, nil
}
