// Package cli implements the command-line interface for civic-events.
//
// The cli package provides the Cobra-based CLI: `serve` runs the HTTP API,
// `feed` runs one community feed aggregation, `events` and `ics` query and
// export the canonical events with the same filters the API accepts, and
// `seed` copies the curated datasets into PostgreSQL. It wires the config,
// store, scraper, feed, cache, calendar and server packages together.
package cli
