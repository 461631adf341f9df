package model

import (
	"github.com/pkg/errors"
)

// Bin identifies one of the waste compartments of the smart bin.
type Bin string

const (
	BinDry        Bin = "dry"
	BinWet        Bin = "wet"
	BinElectronic Bin = "electronic"
	BinUnknown    Bin = "unknown"

	// DestinationNone is the destination of a detection summary without objects.
	// It never maps to a servo.
	DestinationNone Bin = "none"
)

// AllBins lists all bins in their physical order.
var AllBins = []Bin{BinDry, BinWet, BinElectronic, BinUnknown}

// ParseBin converts the given name into a Bin.
func ParseBin(name string) (Bin, error) {
	b := Bin(name)
	if err := b.Validate(); err != nil {
		return "", err
	}
	return b, nil
}

// Validate returns nil when the bin is one of the known bins.
func (b Bin) Validate() error {
	for _, x := range AllBins {
		if x == b {
			return nil
		}
	}
	return errors.Wrapf(UnknownBinError, "'%s'", string(b))
}

// String returns the name of the bin.
func (b Bin) String() string {
	return string(b)
}

// BinLevels maps bins to their fill level in percent (0-100).
type BinLevels map[Bin]float64
