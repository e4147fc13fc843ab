// Package file loads the runtime configuration from a TOML or YAML file.
//
// The format follows the file extension: .yaml and .yml are YAML, anything
// else is TOML. Environment variables override the file:
//
//   - CONTENTSYNC_URL: the GraphQL endpoint
//   - CONTENTSYNC_TOKEN: the bearer token
package file
