// Package config loads and saves pulse.json, the project-level
// configuration consumed by the pulse CLI.
//
// Configuration is optional: every field has a default, and commands
// run without a pulse.json at all. When present, the file is discovered
// by walking up from the working directory, so commands work from any
// subdirectory of a project.
package config
