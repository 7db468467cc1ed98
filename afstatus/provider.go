// Package afstatus is a typed, read-only view of block and justification state
// over an [afchain.Backend].
package afstatus

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afjustification"
	"github.com/fruitbox12/validator-azero/internal/aflog"
)

// JustificationDecoder reports whether raw justification bytes are usable.
type JustificationDecoder func(raw []byte) error

// Provider answers status queries against a backend.
// It holds no state of its own,
// so repeated queries against an unchanged backend give identical answers.
type Provider struct {
	log     *slog.Logger
	backend afchain.Backend
	decode  JustificationDecoder
}

// NewProvider returns a Provider over backend.
// If decode is nil, [afjustification.Check] is used.
func NewProvider(log *slog.Logger, backend afchain.Backend, decode JustificationDecoder) *Provider {
	if decode == nil {
		decode = afjustification.Check
	}
	return &Provider{
		log:     log,
		backend: backend,
		decode:  decode,
	}
}

// StatusOf reports what is known about the block with the given id.
//
// A block with a stored but undecodable justification is reported as Present;
// the decode failure is logged, not returned.
func (p *Provider) StatusOf(ctx context.Context, id afchain.BlockID) (afchain.BlockStatus, error) {
	h, ok, err := p.header(ctx, id)
	if err != nil {
		return afchain.BlockStatus{}, err
	}
	if !ok {
		return afchain.UnknownStatus(), nil
	}

	raw, ok, err := p.justification(ctx, h)
	if err != nil {
		return afchain.BlockStatus{}, err
	}
	if !ok {
		return afchain.PresentStatus(h), nil
	}

	return afchain.JustifiedStatus(afchain.Justification{Header: h, Raw: raw}), nil
}

// FinalizedAt returns the justification of the canonical block at number.
// The boolean result is false if there is no canonical block at that height,
// or if the block there has no usable justification.
func (p *Provider) FinalizedAt(ctx context.Context, number uint64) (afchain.Justification, bool, error) {
	hash, err := p.backend.HashByNumber(ctx, number)
	if err != nil {
		var hue afchain.HeightUnknownError
		if errors.As(err, &hue) {
			return afchain.Justification{}, false, nil
		}
		return afchain.Justification{}, false, BackendError{Err: err}
	}

	st, err := p.StatusOf(ctx, afchain.BlockID{Hash: hash, Number: number})
	if err != nil {
		return afchain.Justification{}, false, err
	}
	if st.Kind != afchain.BlockStatusJustified {
		return afchain.Justification{}, false, nil
	}
	return st.Justification, true, nil
}

// BestBlock returns the header of the backend's best block.
func (p *Provider) BestBlock(ctx context.Context) (afchain.Header, error) {
	info, err := p.backend.Info(ctx)
	if err != nil {
		return afchain.Header{}, BackendError{Err: err}
	}

	h, ok, err := p.headerForHash(ctx, info.BestHash)
	if err != nil {
		return afchain.Header{}, err
	}
	if !ok {
		return afchain.Header{}, MissingHashError{Hash: info.BestHash}
	}
	return h, nil
}

// TopFinalized returns the justification of the backend's finalized block.
// Both the header and a usable justification must exist.
func (p *Provider) TopFinalized(ctx context.Context) (afchain.Justification, error) {
	info, err := p.backend.Info(ctx)
	if err != nil {
		return afchain.Justification{}, BackendError{Err: err}
	}

	h, ok, err := p.headerForHash(ctx, info.FinalizedHash)
	if err != nil {
		return afchain.Justification{}, err
	}
	if !ok {
		return afchain.Justification{}, MissingHashError{Hash: info.FinalizedHash}
	}

	raw, ok, err := p.justification(ctx, h)
	if err != nil {
		return afchain.Justification{}, err
	}
	if !ok {
		return afchain.Justification{}, MissingJustificationError{Hash: info.FinalizedHash}
	}

	return afchain.Justification{Header: h, Raw: raw}, nil
}

// Children returns the headers of every known child of the block with the given id.
// The id is validated first.
// Child hashes whose headers cannot be resolved are skipped.
func (p *Provider) Children(ctx context.Context, id afchain.BlockID) ([]afchain.Header, error) {
	if _, _, err := p.header(ctx, id); err != nil {
		return nil, err
	}

	hashes, err := p.backend.Children(ctx, id.Hash)
	if err != nil {
		return nil, BackendError{Err: err}
	}

	out := make([]afchain.Header, 0, len(hashes))
	for _, hash := range hashes {
		h, ok, err := p.headerForHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// header resolves id, failing if the stored header has a different number.
func (p *Provider) header(ctx context.Context, id afchain.BlockID) (afchain.Header, bool, error) {
	h, ok, err := p.headerForHash(ctx, id.Hash)
	if err != nil || !ok {
		return afchain.Header{}, ok, err
	}
	if h.Number != id.Number {
		return afchain.Header{}, false, MismatchedIDError{ID: id, HeaderNumber: h.Number}
	}
	return h, true, nil
}

func (p *Provider) headerForHash(ctx context.Context, hash []byte) (afchain.Header, bool, error) {
	h, err := p.backend.HeaderByHash(ctx, hash)
	if err != nil {
		var hue afchain.HashUnknownError
		if errors.As(err, &hue) {
			return afchain.Header{}, false, nil
		}
		return afchain.Header{}, false, BackendError{Err: err}
	}
	return h, true, nil
}

// justification returns the raw justification for h
// only if it is stored and decodes.
func (p *Provider) justification(ctx context.Context, h afchain.Header) ([]byte, bool, error) {
	raw, err := p.backend.Justification(ctx, h.Hash)
	if err != nil {
		var jue afchain.JustificationUnknownError
		if errors.As(err, &jue) {
			return nil, false, nil
		}
		return nil, false, BackendError{Err: err}
	}

	if err := p.decode(raw); err != nil {
		aflog.ID(p.log, h.Hash, h.Number).Warn(
			"Could not decode stored justification",
			"err", err,
		)
		return nil, false, nil
	}
	return raw, true, nil
}
