package model

import (
	"sort"
	"strings"
)

// Board names a logical display target. One board can drive several screens.
type Board string

// Version tags the content track of a card (rx, scaled, mod).
type Version string

const (
	BoardMain Board = "mainboard"
	BoardMod  Board = "modboard"

	VersionRx     Version = "rx"
	VersionScaled Version = "scaled"
	VersionMod    Version = "mod"
)

// BoardSpec describes one configured board.
type BoardSpec struct {
	Name           Board   `toml:"name"            json:"name"`
	DefaultVersion Version `toml:"default_version" json:"default_version"`
}

// Catalog is the recognized set of boards and versions.
type Catalog struct {
	boards   []BoardSpec
	byName   map[Board]BoardSpec
	versions map[Version]struct{}
}

func DefaultCatalog() *Catalog {
	return NewCatalog(
		[]BoardSpec{
			{Name: BoardMain, DefaultVersion: VersionRx},
			{Name: BoardMod, DefaultVersion: VersionMod},
		},
		[]Version{VersionRx, VersionScaled, VersionMod},
	)
}

func NewCatalog(boards []BoardSpec, versions []Version) *Catalog {
	c := &Catalog{
		byName:   make(map[Board]BoardSpec, len(boards)),
		versions: make(map[Version]struct{}, len(versions)),
	}
	for _, b := range boards {
		name := Board(strings.TrimSpace(string(b.Name)))
		if name == "" {
			continue
		}
		if _, dup := c.byName[name]; dup {
			continue
		}
		b.Name = name
		c.boards = append(c.boards, b)
		c.byName[name] = b
	}
	for _, v := range versions {
		if v = Version(strings.TrimSpace(string(v))); v != "" {
			c.versions[v] = struct{}{}
		}
	}
	return c
}

// Boards returns the configured boards in configuration order.
func (c *Catalog) Boards() []Board {
	out := make([]Board, 0, len(c.boards))
	for _, b := range c.boards {
		out = append(out, b.Name)
	}
	return out
}

func (c *Catalog) HasBoard(b Board) bool {
	_, ok := c.byName[b]
	return ok
}

func (c *Catalog) HasVersion(v Version) bool {
	_, ok := c.versions[v]
	return ok
}

// Versions returns the recognized versions sorted by name.
func (c *Catalog) Versions() []Version {
	out := make([]Version, 0, len(c.versions))
	for v := range c.versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultVersion is the version applied when a push leaves it empty.
func (c *Catalog) DefaultVersion(b Board) Version {
	return c.byName[b].DefaultVersion
}
