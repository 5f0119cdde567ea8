package domain

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrPortConnected is returned when a port already has a different partner
	ErrPortConnected = errors.New("port already connected")
	// ErrInvalidConnection is returned for nil or same-owner connections
	ErrInvalidConnection = errors.New("invalid connection")
)

// Connection is an undirected edge between two ports
type Connection struct {
	A *Port
	B *Port
}

// NewConnection creates a connection with endpoints in canonical order
func NewConnection(a, b *Port) Connection {
	c := Connection{A: a, B: b}
	c.Normalize()
	return c
}

// Inner reports whether both ports share an owning element
func (c Connection) Inner() bool {
	return c.A.Owner != nil && c.A.Owner == c.B.Owner
}

// Normalize orders the endpoints by port ID so (a,b) and (b,a) compare equal
func (c *Connection) Normalize() {
	if c.A.ID > c.B.ID {
		c.A, c.B = c.B, c.A
	}
}

// ID returns a deterministic identifier independent of endpoint order
func (c Connection) ID() string {
	return ConnectionID(c.A.ID, c.B.ID)
}

// ConnectionID hashes two port IDs into a short stable identifier
func ConnectionID(a, b string) string {
	endpoints := []string{a, b}
	sort.Strings(endpoints)
	hash := sha256.Sum256([]byte(endpoints[0] + "-" + endpoints[1]))
	return fmt.Sprintf("%x", hash[:8])
}
