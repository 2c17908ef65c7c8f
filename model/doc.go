// Package model defines the normalized completion backend interface consumed
// by the worker runtime, plus a deterministic Mock for tests. Concrete
// provider adapters live in the subpackages anthropic and openai.
package model
