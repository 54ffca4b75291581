// Package config loads and validates framelink.json.
//
// Configuration is a single JSON file shared by the send and recv
// commands. Every field has a default; a missing file yields the
// defaults so that `framelink recv` works out of the box on
// tcp://127.0.0.1:9877. A handful of deployment-sensitive fields can
// be overridden from the environment (FRAMELINK_ADDR, FRAMELINK_VARIANT,
// FRAMELINK_DEBUG_ADDR) so containerized runs do not need a config
// file edit per environment.
package config
