package services

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers for surveys, questions and users.
type IDGenerator interface {
	NewID() string
}

// IDFunc adapts a plain function to IDGenerator.
type IDFunc func() string

func (f IDFunc) NewID() string { return f() }

// UUIDGenerator returns the first Length hex characters of a random UUID.
type UUIDGenerator struct {
	Length int
}

func (g UUIDGenerator) NewID() string {
	n := g.Length
	if n <= 0 || n > 32 {
		n = 32
	}
	return shortID(n)
}

// CounterGenerator hands out Prefix+1, Prefix+2, ... and is safe for concurrent use.
type CounterGenerator struct {
	Prefix string
	n      atomic.Int64
}

func (g *CounterGenerator) NewID() string {
	return g.Prefix + strconv.FormatInt(g.n.Add(1), 10)
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
