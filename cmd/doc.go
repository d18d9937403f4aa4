// Package cmd implements the command-line interface of rKV. It provides a
// hierarchical command structure for talking to a cluster as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (ping, info, get, put, del, keys, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable with the prefix RKV_
// (e.g. RKV_NODES=10.0.0.1,10.0.0.2), in a .env or .env.local file, or in a
// config file passed with --config.
//
// See rkv -help for a list of all commands.
package cmd
