package light

import (
	"encoding/json"
	"fmt"

	"github.com/dalight/dalight/matrix"
	"github.com/dalight/dalight/rpc"
)

// Block is the per-block verification input derived from a header: the
// number, the matrix dimensions, the concatenated per-row commitments, and
// the opaque application data lookup passed through to the app client.
type Block struct {
	Number        uint64
	Dimensions    matrix.Dimensions
	Commitment    []byte
	AppDataLookup json.RawMessage
}

// BlockFromHeader extracts the verification input from a header.
func BlockFromHeader(h *rpc.Header) Block {
	return Block{
		Number:        uint64(h.Number),
		Dimensions:    h.Dimensions(),
		Commitment:    h.ExtrinsicsRoot.Commitment,
		AppDataLookup: h.AppDataLookup,
	}
}

// Mode selects between plain light-client operation and application-client
// operation for a specific app id. App id 0 means light client.
type Mode uint32

// ModeLightClient is the default operating mode.
const ModeLightClient Mode = 0

// ModeFromAppID derives the operating mode from an optional configured
// app id.
func ModeFromAppID(appID *uint32) Mode {
	if appID == nil {
		return ModeLightClient
	}
	return Mode(*appID)
}

// IsAppClient reports whether the client also tracks application data.
func (m Mode) IsAppClient() bool { return m != ModeLightClient }

// AppID returns the tracked application id; zero in light-client mode.
func (m Mode) AppID() uint32 { return uint32(m) }

func (m Mode) String() string {
	if m.IsAppClient() {
		return fmt.Sprintf("app-client(%d)", m.AppID())
	}
	return "light-client"
}
