package chain

import (
	"fmt"

	"github.com/coreos/go-semver/semver"
)

// Version is a protocol version.
type Version struct {
	Major uint16
	Minor uint16
}

var (
	// LegacyVersion is the genesis protocol version.
	LegacyVersion = Version{Major: 0, Minor: 1}
	// MarketplaceVersion changes block header construction to use builder bundles.
	MarketplaceVersion = Version{Major: 0, Minor: 2}
	// EpochVersion activates epochs, stake-table rotation and HotStuff-2 commit rules.
	EpochVersion = Version{Major: 0, Minor: 3}
)

// ParseVersion parses a semantic version string ("0.3.0") into a protocol version.
func ParseVersion(s string) (Version, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid protocol version %q: %w", s, err)
	}
	if sv.Major > 0xFFFF || sv.Minor > 0xFFFF {
		return Version{}, fmt.Errorf("protocol version %q out of range", s)
	}
	return Version{Major: uint16(sv.Major), Minor: uint16(sv.Minor)}, nil
}

// Less returns true if v precedes other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

// AtLeast returns true if v is equal to or newer than other.
func (v Version) AtLeast(other Version) bool {
	return !v.Less(other)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Versions bundles the protocol versions a node is configured with.
type Versions struct {
	Base        Version
	Upgrade     Version
	Marketplace Version
	Epochs      Version
	// UpgradeHash identifies the exact upgrade this node is willing to vote for.
	UpgradeHash [32]byte
}

// DefaultVersions returns the versions used by a freshly bootstrapped network.
func DefaultVersions() Versions {
	return Versions{
		Base:        LegacyVersion,
		Upgrade:     EpochVersion,
		Marketplace: MarketplaceVersion,
		Epochs:      EpochVersion,
	}
}
