package versioning

// Build information, embedded with -ldflags at build time
var (
	Version   = "dev"
	Branch    string
	Commit    string
	BuildTime string
)
