package rpc

import (
	"fmt"
	"strings"
)

// Version describes a node's software and runtime identity, used to reject
// endpoints running an incompatible protocol.
type Version struct {
	Version     string
	SpecVersion uint32
	SpecName    string
}

// Matches reports whether two versions are compatible: spec name and spec
// version must be equal, and one version string must be a prefix of the
// other. The prefix rule tolerates patch-level drift between the client's
// expected release and the node's actual one.
func (v Version) Matches(other Version) bool {
	return (strings.HasPrefix(v.Version, other.Version) ||
		strings.HasPrefix(other.Version, v.Version)) &&
		v.SpecName == other.SpecName &&
		v.SpecVersion == other.SpecVersion
}

// String formats the version as "v<version>/<spec name>/<spec version>".
func (v Version) String() string {
	return fmt.Sprintf("v%s/%s/%d", v.Version, v.SpecName, v.SpecVersion)
}
