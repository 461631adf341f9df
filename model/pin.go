package model

import (
	"sort"

	"github.com/pkg/errors"
)

const (
	// MinBCMPin is the lowest usable BCM GPIO number on the 40-pin header.
	MinBCMPin = 0
	// MaxBCMPin is the highest usable BCM GPIO number on the 40-pin header.
	MaxBCMPin = 27
)

// Pin is a GPIO pin identified by its BCM (Broadcom SoC) number,
// not by its physical header position.
type Pin int

// Validate the pin number, returning nil on ok,
// or an error upon validation issues.
func (p Pin) Validate() error {
	if p < MinBCMPin || p > MaxBCMPin {
		return errors.Wrapf(ValidationError, "BCM pin %d out of range [%d..%d]", int(p), MinBCMPin, MaxBCMPin)
	}
	return nil
}

// PinAssignment maps a named hardware element to the BCM pin it is wired to.
type PinAssignment struct {
	// Name of the element, e.g. "servo.dry" or "ultrasonic.wet.echo"
	Name string `json:"name" yaml:"name"`
	// BCM GPIO number
	Pin Pin `json:"pin" yaml:"pin"`
}

// ValidatePinAssignments checks that all pins are valid and that
// no pin is wired to more than one element.
func ValidatePinAssignments(list []PinAssignment) error {
	used := make(map[Pin]string)
	for _, a := range list {
		if err := a.Pin.Validate(); err != nil {
			return errors.Wrapf(err, "pin of '%s'", a.Name)
		}
		if other, found := used[a.Pin]; found {
			return errors.Wrapf(ValidationError, "BCM pin %d assigned to both '%s' and '%s'", int(a.Pin), other, a.Name)
		}
		used[a.Pin] = a.Name
	}
	return nil
}

// SortPinAssignments sorts the given list by pin number.
func SortPinAssignments(list []PinAssignment) {
	sort.Slice(list, func(i, j int) bool { return list[i].Pin < list[j].Pin })
}
