package config_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gixcore/internal/config"
)

func TestSettingsThreadingAffectors(testInstance *testing.T) {
	coreConfiguration := config.DefaultConfiguration().Core
	settings := config.NewSettings(coreConfiguration)
	require.Equal(testInstance, config.ThreadingAll, settings.Threading())

	removeStatusList := settings.AddThreadingAffector(config.ThreadingAffectorFunc(func(flags config.ThreadingFlags) config.ThreadingFlags {
		return flags &^ config.ThreadingStatusList
	}))
	removeStage := settings.AddThreadingAffector(config.ThreadingAffectorFunc(func(flags config.ThreadingFlags) config.ThreadingFlags {
		return flags &^ config.ThreadingStage
	}))

	require.Equal(testInstance, config.ThreadingUnstage, settings.Threading())
	require.False(testInstance, settings.IsThreaded(config.ThreadingStatusList))
	require.True(testInstance, settings.IsThreaded(config.ThreadingUnstage))

	removeStatusList()
	removeStatusList()
	require.Equal(testInstance, config.ThreadingUnstage|config.ThreadingStatusList, settings.Threading())

	removeStage()
	require.Equal(testInstance, config.ThreadingAll, settings.Threading())
	settings.AddThreadingAffector(nil)()
}

func TestSettingsAccessors(testInstance *testing.T) {
	coreConfiguration := config.DefaultConfiguration().Core
	coreConfiguration.LazyMode = true
	coreConfiguration.CompanionSuffix = ".meta"
	settings := config.NewSettings(coreConfiguration)

	require.True(testInstance, settings.LazyMode())
	require.True(testInstance, settings.DetectRenames())
	require.True(testInstance, settings.IncludeIgnored())
	require.True(testInstance, settings.AutoStage())
	require.False(testInstance, settings.DisablePostprocess())
	require.Equal(testInstance, ".meta", settings.CompanionSuffix())

	coreConfiguration.AutoStage = false
	settings.Update(coreConfiguration)
	require.False(testInstance, settings.AutoStage())
	require.Equal(testInstance, coreConfiguration, settings.Core())
}

func TestSettingsConcurrentReads(testInstance *testing.T) {
	settings := config.NewSettings(config.DefaultConfiguration().Core)

	var waitGroup sync.WaitGroup
	for index := 0; index < 8; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			remove := settings.AddThreadingAffector(config.ThreadingAffectorFunc(func(flags config.ThreadingFlags) config.ThreadingFlags {
				return flags
			}))
			_ = settings.Threading()
			remove()
		}()
	}
	waitGroup.Wait()
	require.Equal(testInstance, config.ThreadingAll, settings.Threading())
}
