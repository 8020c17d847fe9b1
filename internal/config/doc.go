// Package config loads poseconv run configuration from TOML.
//
// Lookup order: the --config flag, ~/.config/poseconv/config.toml, then
// ./poseconv.toml in the working directory. With no file the built-in
// defaults apply. `poseconv config init` writes the commented sample.
package config
