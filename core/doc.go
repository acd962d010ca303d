// Package core contains the reveal domain contracts: identifier sets, the
// upstream reveal payload, display field specs, error envelopes, audit
// attempts and configuration. Adapters (transport, storage, HTTP) depend on
// this package; core must not depend on them.
package core
