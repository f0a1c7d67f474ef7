// Package config describes the settings read by the status core.
//
// Configuration is decoded by utils.ConfigurationLoader from the embedded
// defaults, an optional configuration file and GIXCORE_ environment
// variables. Settings wraps the core section for runtime reads and lets
// collaborators restrict threading through ThreadingAffector values.
package config
