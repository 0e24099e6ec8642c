package catalog

import (
	"errors"
	"fmt"
	"strings"

	"SignalBot/internal/domain/models"
)

var (
	ErrEmptyCatalog = errors.New("catalog: no instruments configured")
	ErrUnknownGroup = errors.New("catalog: unknown group")
)

// Group is a named, ordered set of instruments (e.g. crypto_otc).
type Group struct {
	Name        string              `yaml:"name" json:"name"`
	Instruments []models.Instrument `yaml:"instruments" json:"instruments"`
}

// Catalog is the immutable instrument universe. Group and instrument order is
// preserved so scans iterate deterministically.
type Catalog struct {
	groups []Group
	index  map[string]int
	byName map[string]models.Instrument
	total  int
}

// New validates groups and builds a Catalog.
func New(groups []Group) (*Catalog, error) {
	c := &Catalog{
		index:  make(map[string]int, len(groups)),
		byName: make(map[string]models.Instrument),
	}
	for _, g := range groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog: group name is required")
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("catalog: duplicate group %q", name)
		}
		out := Group{Name: name, Instruments: make([]models.Instrument, 0, len(g.Instruments))}
		for _, inst := range g.Instruments {
			inst.Group = name
			if err := validate(inst); err != nil {
				return nil, fmt.Errorf("catalog: group %s: %w", name, err)
			}
			if _, dup := c.byName[inst.Name]; dup {
				return nil, fmt.Errorf("catalog: duplicate instrument %q", inst.Name)
			}
			c.byName[inst.Name] = inst
			out.Instruments = append(out.Instruments, inst)
		}
		c.index[name] = len(c.groups)
		c.groups = append(c.groups, out)
		c.total += len(out.Instruments)
	}
	if c.total == 0 {
		return nil, ErrEmptyCatalog
	}
	return c, nil
}

func validate(inst models.Instrument) error {
	if inst.Name == "" {
		return errors.New("instrument name is required")
	}
	if inst.Symbol == "" {
		return fmt.Errorf("instrument %s: symbol is required", inst.Name)
	}
	if inst.Class != models.InstrumentOTC && inst.Class != models.InstrumentRegular {
		return fmt.Errorf("instrument %s: invalid class %q", inst.Name, inst.Class)
	}
	if inst.Payout <= 0 || inst.Payout > 100 {
		return fmt.Errorf("instrument %s: payout %d out of range", inst.Name, inst.Payout)
	}
	return nil
}

// Len returns the number of instruments.
func (c *Catalog) Len() int { return c.total }

// Groups returns group names in configured order.
func (c *Catalog) Groups() []string {
	out := make([]string, len(c.groups))
	for i, g := range c.groups {
		out[i] = g.Name
	}
	return out
}

// Group returns a copy of the instruments in the named group.
func (c *Catalog) Group(name string) ([]models.Instrument, error) {
	i, ok := c.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, name)
	}
	return append([]models.Instrument(nil), c.groups[i].Instruments...), nil
}

// Lookup finds an instrument by display name.
func (c *Catalog) Lookup(name string) (models.Instrument, bool) {
	inst, ok := c.byName[name]
	return inst, ok
}

// All returns every instrument in group order.
func (c *Catalog) All() []models.Instrument {
	out := make([]models.Instrument, 0, c.total)
	for _, g := range c.groups {
		out = append(out, g.Instruments...)
	}
	return out
}
