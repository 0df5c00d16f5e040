package version

// Version is the release version of the CLI and library.
const Version = "0.1.0"
