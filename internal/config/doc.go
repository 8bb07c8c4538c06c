// Package config holds the crawler configuration: defaults, the flat
// Config struct populated from CLI flags and the optional .webcorpus
// YAML file, and validation with sentinel errors.
//
// Precedence is file < flags: the crawl command loads the config file
// first and then overlays any flag the user set explicitly.
package config
