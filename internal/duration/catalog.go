// Package duration holds the fixed set of recording-length tiers a
// contributor can choose from. Nothing downstream accepts a length that is
// not listed here.
package duration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	maxMinutes = 60
	tierSuffix = "_minutes"
	mebibyte   = 1024 * 1024
)

var ErrUnknownDuration = errors.New("unknown recording duration")

// ID names a tier
type ID string

const (
	Short    ID = "short"
	Standard ID = "standard"
	Extended ID = "extended"
)

// Option is one recording-length tier
type Option struct {
	ID               ID     `json:"id"`
	Label            string `json:"label"`
	Minutes          int    `json:"minutes"`
	MaxFileSizeBytes int64  `json:"maxFileSizeBytes"`
}

// MaxDurationSeconds is the hard cap handed to the recording engine
func (o Option) MaxDurationSeconds() int {
	return o.Minutes * 60
}

// Tier is the wire form used by the script endpoint, e.g. "5_minutes"
func (o Option) Tier() string {
	return strconv.Itoa(o.Minutes) + tierSuffix
}

type Catalog struct {
	options []Option
}

// Default returns the catalog shipped with the application
func Default() *Catalog {
	return &Catalog{options: []Option{
		{ID: Short, Label: "2 minutes", Minutes: 2, MaxFileSizeBytes: 10 * mebibyte},
		{ID: Standard, Label: "5 minutes", Minutes: 5, MaxFileSizeBytes: 25 * mebibyte},
		{ID: Extended, Label: "10 minutes", Minutes: 10, MaxFileSizeBytes: 50 * mebibyte},
	}}
}

// New builds a catalog from explicit options. Ids and minutes must be unique.
func New(options ...Option) (*Catalog, error) {
	seenIDs := make(map[ID]bool, len(options))
	seenMinutes := make(map[int]bool, len(options))

	for _, o := range options {
		if o.ID == "" {
			return nil, fmt.Errorf("duration option id is required")
		}
		if o.Minutes <= 0 || o.Minutes > maxMinutes {
			return nil, fmt.Errorf("duration option %s: minutes must be in 1..%d, got %d", o.ID, maxMinutes, o.Minutes)
		}
		if o.MaxFileSizeBytes <= 0 {
			return nil, fmt.Errorf("duration option %s: max file size must be positive", o.ID)
		}
		if seenIDs[o.ID] {
			return nil, fmt.Errorf("duration option %s: duplicate id", o.ID)
		}
		if seenMinutes[o.Minutes] {
			return nil, fmt.Errorf("duration option %s: duplicate minutes %d", o.ID, o.Minutes)
		}
		seenIDs[o.ID] = true
		seenMinutes[o.Minutes] = true
	}

	opts := make([]Option, len(options))
	copy(opts, options)
	return &Catalog{options: opts}, nil
}

// All returns the tiers in display order
func (c *Catalog) All() []Option {
	out := make([]Option, len(c.options))
	copy(out, c.options)
	return out
}

func (c *Catalog) Lookup(id ID) (Option, error) {
	for _, o := range c.options {
		if o.ID == id {
			return o, nil
		}
	}
	return Option{}, fmt.Errorf("%w: id %q", ErrUnknownDuration, id)
}

func (c *Catalog) ByMinutes(minutes int) (Option, error) {
	for _, o := range c.options {
		if o.Minutes == minutes {
			return o, nil
		}
	}
	return Option{}, fmt.Errorf("%w: %d minutes", ErrUnknownDuration, minutes)
}

// ParseTier resolves the wire form ("5_minutes") back to its option
func (c *Catalog) ParseTier(tier string) (Option, error) {
	raw, ok := strings.CutSuffix(tier, tierSuffix)
	if !ok {
		return Option{}, fmt.Errorf("%w: tier %q", ErrUnknownDuration, tier)
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return Option{}, fmt.Errorf("%w: tier %q", ErrUnknownDuration, tier)
	}
	return c.ByMinutes(minutes)
}

// Resolve accepts either an id ("standard") or a tier ("5_minutes")
func (c *Catalog) Resolve(value string) (Option, error) {
	if o, err := c.Lookup(ID(value)); err == nil {
		return o, nil
	}
	return c.ParseTier(value)
}
