package glibp2p

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	p2phost "github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// Host is a libp2p host and a pubsub instance.
type Host struct {
	h p2phost.Host

	ps *pubsub.PubSub
}

// HostOptions holds libp2p configuration for the host and pubsub value.
type HostOptions struct {
	// Options are passed when creating the underlying libp2p host.
	Options []libp2p.Option

	// PubSubOptions are applied to NewGossipSub.
	PubSubOptions []pubsub.Option
}

func NewHost(ctx context.Context, opts HostOptions) (*Host, error) {
	h, err := libp2p.New(opts.Options...)
	if err != nil {
		return nil, err
	}

	ps, err := pubsub.NewGossipSub(ctx, h, opts.PubSubOptions...)
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	return &Host{
		h:  h,
		ps: ps,
	}, nil
}

// Libp2pHost returns the underlying libp2p host value.
func (h *Host) Libp2pHost() p2phost.Host {
	return h.h
}

// PubSub returns the underlying libp2p pubsub value.
func (h *Host) PubSub() *pubsub.PubSub {
	return h.ps
}

// AddrInfo is the host's own peer ID and listen addresses.
func (h *Host) AddrInfo() peer.AddrInfo {
	return peer.AddrInfo{
		ID:    h.h.ID(),
		Addrs: h.h.Addrs(),
	}
}

// FullAddrs returns the host's listen addresses
// with the /p2p/<id> component appended,
// suitable for another node's bootstrap list.
func (h *Host) FullAddrs() ([]string, error) {
	mas, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{ID: h.h.ID(), Addrs: h.h.Addrs()})
	if err != nil {
		return nil, fmt.Errorf("failed to build p2p addresses: %w", err)
	}
	out := make([]string, len(mas))
	for i, ma := range mas {
		out[i] = ma.String()
	}
	return out, nil
}

// Dial connects to every peer in addrs,
// each a multiaddr including a /p2p/<id> component.
// It returns the first error encountered, after attempting every address.
func (h *Host) Dial(ctx context.Context, addrs []string) error {
	var firstErr error
	for _, a := range addrs {
		ma, err := multiaddr.NewMultiaddr(a)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to parse multiaddr %q: %w", a, err)
			}
			continue
		}

		ai, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to get peer info from %q: %w", a, err)
			}
			continue
		}

		if err := h.h.Connect(ctx, *ai); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to connect to %s: %w", ai.ID, err)
			}
		}
	}
	return firstErr
}

// Close closes the underlying libp2p host and returns its error.
func (h *Host) Close() error {
	return h.h.Close()
}
