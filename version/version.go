package version

// Version is the current release of the vitalguard CLI & server.
var Version = "0.3.0"
