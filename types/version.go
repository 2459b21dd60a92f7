package types

// Version is the jansky release version.
// Reported by the version command and by the CLI's --version output.
const Version = "0.3.0"
