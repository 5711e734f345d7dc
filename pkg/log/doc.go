// Package log provides structured logging for midplane built on zerolog.
//
// The event hook binaries are short-lived processes launched by the clustering
// daemon, so output goes to stderr where the daemon collects it. Init
// configures the global logger once at process start; packages derive child
// loggers with WithComponent and WithNodeID.
package log
