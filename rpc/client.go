// Package rpc talks to full nodes: it selects and validates an endpoint
// from the configured list, then fetches headers, cells, and proofs for
// the sampling pipeline over the node's JSON-RPC interface.
package rpc

import (
	"context"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/dalight/dalight/log"
)

// Conn is the abstract JSON-RPC transport. The production implementation
// is go-ethereum's rpc.Client (websocket or HTTP); tests substitute fakes.
type Conn interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
	Close()
}

// Dialer opens a transport connection to a single endpoint.
type Dialer func(ctx context.Context, url string) (Conn, error)

func dial(ctx context.Context, url string) (Conn, error) {
	return gethrpc.DialContext(ctx, url)
}

// Client is an established session with one full node.
type Client struct {
	conn Conn
	url  string
}

// NewClient wraps an established transport connection. Most callers obtain
// a Client through Connect instead.
func NewClient(conn Conn, url string) *Client {
	return &Client{conn: conn, url: url}
}

// URL returns the endpoint this client is connected to.
func (c *Client) URL() string { return c.url }

// Close tears down the underlying transport connection.
func (c *Client) Close() { c.conn.Close() }

// BlockHash returns the hash of the block with the given number. The chain
// carries block numbers as u32 on the wire, so larger numbers are rejected
// before the call rather than silently truncated.
func (c *Client) BlockHash(ctx context.Context, number uint64) (common.Hash, error) {
	if number > math.MaxUint32 {
		return common.Hash{}, fmt.Errorf("rpc: block number %d exceeds u32 range", number)
	}
	var hash *common.Hash
	if err := c.conn.CallContext(ctx, &hash, "chain_getBlockHash", uint32(number)); err != nil {
		return common.Hash{}, fmt.Errorf("rpc: chain_getBlockHash: %w", err)
	}
	if hash == nil {
		return common.Hash{}, fmt.Errorf("rpc: block %d not found", number)
	}
	return *hash, nil
}

// HeaderByHash returns the header with the given hash.
func (c *Client) HeaderByHash(ctx context.Context, hash common.Hash) (*Header, error) {
	var header *Header
	if err := c.conn.CallContext(ctx, &header, "chain_getHeader", hash); err != nil {
		return nil, fmt.Errorf("rpc: chain_getHeader: %w", err)
	}
	if header == nil {
		return nil, fmt.Errorf("rpc: header %s not found", hash)
	}
	return header, nil
}

// LatestHeader returns the header of the latest block known to the node.
func (c *Client) LatestHeader(ctx context.Context) (*Header, error) {
	var header *Header
	if err := c.conn.CallContext(ctx, &header, "chain_getHeader"); err != nil {
		return nil, fmt.Errorf("rpc: chain_getHeader: %w", err)
	}
	if header == nil {
		return nil, fmt.Errorf("rpc: latest header not found")
	}
	return header, nil
}

// HeaderByNumber returns the header with the given number together with its
// hash, for use in subsequent cell queries.
func (c *Client) HeaderByNumber(ctx context.Context, number uint32) (*Header, common.Hash, error) {
	hash, err := c.BlockHash(ctx, uint64(number))
	if err != nil {
		return nil, common.Hash{}, err
	}
	header, err := c.HeaderByHash(ctx, hash)
	if err != nil {
		return nil, common.Hash{}, err
	}
	return header, hash, nil
}

// SystemVersion returns the node's software version string.
func (c *Client) SystemVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.conn.CallContext(ctx, &version, "system_version"); err != nil {
		return "", fmt.Errorf("rpc: system_version: %w", err)
	}
	return version, nil
}

// RuntimeVersion returns the node's runtime spec name and version.
func (c *Client) RuntimeVersion(ctx context.Context) (*RuntimeVersion, error) {
	var rv RuntimeVersion
	if err := c.conn.CallContext(ctx, &rv, "state_getRuntimeVersion"); err != nil {
		return nil, fmt.Errorf("rpc: state_getRuntimeVersion: %w", err)
	}
	return &rv, nil
}

func rpcLog() *log.Logger {
	return log.Default().Module("rpc")
}
