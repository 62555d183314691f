package config

// Version is the application version, overridable at build time via ldflags:
//
//	go build -ldflags "-X 'github.com/tgmanager/tgmanager/internal/config.Version=x.y.z'"
var Version = "0.1.0-dev"
