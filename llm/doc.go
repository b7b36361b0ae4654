// Package llm implements the model routing engine: it maps a task type and
// prompt context to a concrete provider/model pair by scoring complexity
// into an ordinal tier, walking a preference-ordered routing matrix under a
// cost ceiling, and caching decisions in a bounded TTL LRU with an optional
// Redis second level.
package llm
