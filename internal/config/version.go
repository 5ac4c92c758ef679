package config

// Version is the traceboard binary version.
// Set at build time via: -ldflags "-X github.com/traceboard/traceboard/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
