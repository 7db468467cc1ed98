// Package afmemstore contains an in-memory [afstore.ChainStore].
package afmemstore

import (
	"bytes"
	"context"
	"sync"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afstore"
)

type ChainStore struct {
	mu sync.RWMutex

	headers   map[string]afchain.Header
	children  map[string][][]byte
	justs     map[string][]byte
	canonical map[uint64][]byte

	genesis, best, finalized afchain.BlockID
	initialized              bool
}

func NewChainStore() *ChainStore {
	return &ChainStore{
		headers:   make(map[string]afchain.Header),
		children:  make(map[string][][]byte),
		justs:     make(map[string][]byte),
		canonical: make(map[uint64][]byte),
	}
}

func (s *ChainStore) Close() error { return nil }

func (s *ChainStore) SaveHeader(_ context.Context, h afchain.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.headers[string(h.Hash)]; ok {
		return afstore.HashAlreadyExistsError{Hash: bytes.Clone(h.Hash)}
	}
	if h.Number == 0 && s.initialized {
		return afstore.GenesisAlreadyExistsError{Existing: bytes.Clone(s.genesis.Hash)}
	}
	if err := afstore.CheckParent(s.headerLocked, h); err != nil {
		return err
	}

	h = h.Clone()
	s.headers[string(h.Hash)] = h
	if h.Number > 0 {
		s.children[string(h.ParentHash)] = append(s.children[string(h.ParentHash)], h.Hash)
		return nil
	}

	s.genesis = h.ID()
	s.best = h.ID()
	s.finalized = h.ID()
	s.canonical[0] = h.Hash
	s.initialized = true
	return nil
}

func (s *ChainStore) SetBest(_ context.Context, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.headerLocked(hash)
	if err != nil {
		return err
	}
	return s.setBestLocked(h)
}

func (s *ChainStore) setBestLocked(h afchain.Header) error {
	route, err := afstore.CanonicalRoute(s.headerLocked, s.canonicalLocked, h)
	if err != nil {
		return err
	}

	for n := range s.canonical {
		if n > h.Number {
			delete(s.canonical, n)
		}
	}
	for _, id := range route {
		s.canonical[id.Number] = id.Hash
	}
	s.best = h.ID()
	return nil
}

func (s *ChainStore) Finalize(_ context.Context, hash, justification []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.headerLocked(hash)
	if err != nil {
		return err
	}
	if err := afstore.CheckFinalizable(s.headerLocked, s.finalized, h); err != nil {
		return err
	}

	s.justs[string(h.Hash)] = bytes.Clone(justification)
	s.finalized = h.ID()

	if !bytes.Equal(s.canonical[h.Number], h.Hash) {
		return s.setBestLocked(h)
	}
	return nil
}

func (s *ChainStore) HeaderByHash(_ context.Context, hash []byte) (afchain.Header, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, err := s.headerLocked(hash)
	if err != nil {
		return afchain.Header{}, err
	}
	return h.Clone(), nil
}

func (s *ChainStore) HashByNumber(_ context.Context, number uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.canonical[number]
	if !ok {
		return nil, afchain.HeightUnknownError{Want: number}
	}
	return bytes.Clone(hash), nil
}

func (s *ChainStore) Children(_ context.Context, hash []byte) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs := s.children[string(hash)]
	out := make([][]byte, len(cs))
	for i, c := range cs {
		out[i] = bytes.Clone(c)
	}
	return out, nil
}

func (s *ChainStore) Justification(_ context.Context, hash []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.justs[string(hash)]
	if !ok {
		return nil, afchain.JustificationUnknownError{Hash: bytes.Clone(hash)}
	}
	return bytes.Clone(j), nil
}

func (s *ChainStore) Info(_ context.Context) (afchain.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return afchain.Info{}, afstore.ErrStoreUninitialized
	}
	return afchain.Info{
		GenesisHash:     bytes.Clone(s.genesis.Hash),
		BestHash:        bytes.Clone(s.best.Hash),
		BestNumber:      s.best.Number,
		FinalizedHash:   bytes.Clone(s.finalized.Hash),
		FinalizedNumber: s.finalized.Number,
	}, nil
}

func (s *ChainStore) headerLocked(hash []byte) (afchain.Header, error) {
	h, ok := s.headers[string(hash)]
	if !ok {
		return afchain.Header{}, afchain.HashUnknownError{Got: bytes.Clone(hash)}
	}
	return h, nil
}

func (s *ChainStore) canonicalLocked(number uint64) ([]byte, error) {
	return s.canonical[number], nil
}
