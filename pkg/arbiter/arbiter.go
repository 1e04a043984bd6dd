// Package arbiter hands out request generations. Every navigation mints a new
// token and only results tagged with the current token may touch shared
// state; anything else is discarded by the caller.
package arbiter

import "sync/atomic"

type Token uint64

// None is never current.
const None Token = 0

type Arbiter struct {
	current atomic.Uint64
}

func New() *Arbiter {
	return &Arbiter{}
}

// Mint advances the generation and returns the new, now current, token.
func (a *Arbiter) Mint() Token {
	return Token(a.current.Add(1))
}

func (a *Arbiter) Current() Token {
	return Token(a.current.Load())
}

func (a *Arbiter) IsCurrent(token Token) bool {
	return token != None && Token(a.current.Load()) == token
}
