// Package config loads the fcc configuration.
//
// Precedence, lowest first: Default(), the YAML file, FCC_* environment variables.
// The merged result is checked by Validate.
package config
