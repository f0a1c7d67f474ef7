// Package utils exposes reusable helpers consumed by the CLI and the status core.
//
// It houses ConfigurationLoader and LoggerFactory abstractions that integrate
// Viper, environment variables, and zap logging, plus the accessor that carries
// the resolved configuration file path through command contexts.
package utils
