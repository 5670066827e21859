//go:build linux

package power

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// openLine requests name (e.g. "GPIO17") as an output driven low. When chip
// is empty every /dev/gpiochip* is searched. A numeric name is a line offset
// on chip.
func openLine(chip, name string) (Switch, error) {
	if name == "" {
		return nil, errors.New("power: no gpio line configured")
	}

	candidates := []string{chip}
	if chip == "" {
		candidates = nil
		entries, _ := os.ReadDir("/dev")
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "gpiochip") {
				candidates = append(candidates, filepath.Join("/dev", e.Name()))
			}
		}
	}

	for _, chipPath := range candidates {
		c, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := strconv.Atoi(name)
		if err != nil || chip == "" {
			offset, err = c.FindLine(name)
		}
		if err != nil {
			_ = c.Close()
			continue
		}
		line, err := c.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("gnss-tracker"))
		if err != nil {
			_ = c.Close()
			continue
		}
		return &gpiodLine{chip: c, line: line}, nil
	}

	return nil, errors.Errorf("power: gpio line %q not found (or busy)", name)
}

var openLineFn = openLine

type gpiodLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodLine) Set(on bool) error {
	if g == nil || g.line == nil {
		return errors.New("power: gpio line not initialized")
	}
	v := 0
	if on {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *gpiodLine) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	// Leave the receiver unpowered.
	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
