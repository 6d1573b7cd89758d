// Package config loads the JSON run configuration shared by the CLI and
// tests. The schema is flat; omitted fields keep their defaults, so
// partial configs are safe.
package config
