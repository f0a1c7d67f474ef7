package config

import "sync"

// ThreadingAffector may restrict the configured threading flags at runtime.
type ThreadingAffector interface {
	AffectThreading(flags ThreadingFlags) ThreadingFlags
}

// ThreadingAffectorFunc adapts a function to ThreadingAffector.
type ThreadingAffectorFunc func(flags ThreadingFlags) ThreadingFlags

// AffectThreading implements ThreadingAffector.
func (affector ThreadingAffectorFunc) AffectThreading(flags ThreadingFlags) ThreadingFlags {
	return affector(flags)
}

type registeredAffector struct {
	identifier uint64
	affector   ThreadingAffector
}

// Settings exposes the core configuration to the core components. Safe for concurrent use.
type Settings struct {
	mutex          sync.RWMutex
	configuration  CoreConfiguration
	affectors      []registeredAffector
	nextIdentifier uint64
}

// NewSettings wraps configuration.
func NewSettings(configuration CoreConfiguration) *Settings {
	return &Settings{configuration: configuration}
}

// Core returns a copy of the wrapped configuration.
func (settings *Settings) Core() CoreConfiguration {
	settings.mutex.RLock()
	defer settings.mutex.RUnlock()
	return settings.configuration
}

// Update replaces the wrapped configuration. Affectors are kept.
func (settings *Settings) Update(configuration CoreConfiguration) {
	settings.mutex.Lock()
	defer settings.mutex.Unlock()
	settings.configuration = configuration
}

// AddThreadingAffector registers affector and returns a function removing it.
func (settings *Settings) AddThreadingAffector(affector ThreadingAffector) func() {
	if affector == nil {
		return func() {}
	}
	settings.mutex.Lock()
	settings.nextIdentifier++
	identifier := settings.nextIdentifier
	settings.affectors = append(settings.affectors, registeredAffector{identifier: identifier, affector: affector})
	settings.mutex.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			settings.mutex.Lock()
			defer settings.mutex.Unlock()
			for index, registered := range settings.affectors {
				if registered.identifier == identifier {
					settings.affectors = append(settings.affectors[:index:index], settings.affectors[index+1:]...)
					return
				}
			}
		})
	}
}

// Threading returns the configured flags after every affector ran, in registration order.
func (settings *Settings) Threading() ThreadingFlags {
	settings.mutex.RLock()
	defer settings.mutex.RUnlock()
	flags := settings.configuration.Threading
	for _, registered := range settings.affectors {
		flags = registered.affector.AffectThreading(flags)
	}
	return flags
}

// IsThreaded reports whether every flag in mask survives the affectors.
func (settings *Settings) IsThreaded(mask ThreadingFlags) bool {
	return settings.Threading().Has(mask)
}

// LazyMode reports whether updates wait for an active watcher.
func (settings *Settings) LazyMode() bool {
	return settings.Core().LazyMode
}

// DetectRenames reports whether full rescans pair renamed paths.
func (settings *Settings) DetectRenames() bool {
	return settings.Core().DetectRenames
}

// IncludeIgnored reports whether full rescans list ignored paths.
func (settings *Settings) IncludeIgnored() bool {
	return settings.Core().IncludeIgnored
}

// AutoStage reports whether saved and imported paths are staged automatically.
func (settings *Settings) AutoStage() bool {
	return settings.Core().AutoStage
}

// DisablePostprocess reports whether host file notifications are ignored.
func (settings *Settings) DisablePostprocess() bool {
	return settings.Core().DisablePostprocess
}

// CompanionSuffix returns the suffix of sidecar files staged together with their owner.
func (settings *Settings) CompanionSuffix() string {
	return settings.Core().CompanionSuffix
}
