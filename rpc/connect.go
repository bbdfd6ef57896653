package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrNoWorkingNodes is returned when every configured endpoint was tried
// and none produced a reachable, version-compatible connection.
var ErrNoWorkingNodes = errors.New("rpc: no working nodes")

// shuffleNodes orders the candidate endpoints for a connection attempt:
// the last used node is removed, the remainder is shuffled uniformly, and
// the last used node is appended at the tail so it is retried only when
// every other candidate fails. An empty lastUsed leaves the full shuffled
// list.
func shuffleNodes(nodes []string, lastUsed string) []string {
	candidates := make([]string, 0, len(nodes))
	removed := 0
	for _, n := range nodes {
		if lastUsed != "" && n == lastUsed {
			removed++
			continue
		}
		candidates = append(candidates, n)
	}
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if removed > 0 {
		candidates = append(candidates, lastUsed)
	}
	return candidates
}

// Connect establishes a session with one version-compatible full node from
// the list. Candidates are tried strictly sequentially in shuffled order
// (last used node last); per-candidate failures are logged at warning level
// and skipped. The returned URL should be passed back as lastUsed on the
// next call. ErrNoWorkingNodes is terminal for this attempt and is not
// retried internally.
func Connect(ctx context.Context, nodes []string, lastUsed string, expected Version) (*Client, string, error) {
	return connect(ctx, dial, nodes, lastUsed, expected)
}

func connect(ctx context.Context, dial Dialer, nodes []string, lastUsed string, expected Version) (*Client, string, error) {
	lg := rpcLog()
	for _, url := range shuffleNodes(nodes, lastUsed) {
		conn, err := dial(ctx, url)
		if err != nil {
			lg.Warn("skipping node, dial failed", "node", url, "err", err)
			continue
		}
		client := NewClient(conn, url)

		systemVersion, err := client.SystemVersion(ctx)
		if err != nil {
			lg.Warn("skipping node, system version query failed", "node", url, "err", err)
			client.Close()
			continue
		}
		runtimeVersion, err := client.RuntimeVersion(ctx)
		if err != nil {
			lg.Warn("skipping node, runtime version query failed", "node", url, "err", err)
			client.Close()
			continue
		}

		version := Version{
			Version:     systemVersion,
			SpecVersion: runtimeVersion.SpecVersion,
			SpecName:    runtimeVersion.SpecName,
		}
		if !expected.Matches(version) {
			lg.Warn("skipping node, version mismatch",
				"node", url, "expected", expected.String(), "found", version.String())
			client.Close()
			continue
		}

		lg.Info("connection established", "node", url, "version", version.String())
		return client, url, nil
	}
	return nil, "", fmt.Errorf("%w: tried %d candidates", ErrNoWorkingNodes, len(nodes))
}
