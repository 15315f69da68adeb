// Package fabula is a story progression engine for narrated,
// illustrated children's adventures. A player picks a subject, and the
// engine walks its branching story graph: every node resolves an
// AI-generated scene image plus interaction-specific content (item
// locations, math piece images) from a slow, fallible, rate-limited
// remote service, caching results and preloading the most likely next
// scene so the experience stays responsive.
//
// Every content failure has a degradation path (placeholder image,
// bypass node, auto-advance or placeholder piece), so the story never
// hard-stalls and the player is never stuck.
//
// The engine is presentation-agnostic: pkg/adapters/http exposes it as
// a JSON API and cmd/fabula plays it in a terminal.
package fabula
