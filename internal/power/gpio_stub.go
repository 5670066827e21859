//go:build !linux

package power

import "github.com/pkg/errors"

func openLine(chip, name string) (Switch, error) {
	return nil, errors.New("power: gpio unsupported on this platform")
}

var openLineFn = openLine
