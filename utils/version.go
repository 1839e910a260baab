package utils

// Build metadata, injected via -ldflags at release time.
var (
	Tag        string
	GitHash    string
	BuildStamp string
)
