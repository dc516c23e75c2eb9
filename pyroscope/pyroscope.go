package pyroscope

import (
	"os"
	"runtime"

	"github.com/grafana/pyroscope-go"
	"github.com/sirupsen/logrus"

	"github.com/UnownHash/isochroner/version"
)

func profilerConfig(logger *logrus.Logger, config Config) pyroscope.Config {
	pyroscopeConfig := pyroscope.Config{
		ApplicationName: config.ApplicationName,
		ServerAddress:   config.ServerAddress,
		Logger:          logger,
		Tags: map[string]string{
			"hostname": os.Getenv("HOSTNAME"),
			"version":  version.APP_VERSION,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,

			pyroscope.ProfileGoroutines,
		},
	}

	if config.MutexProfileFraction > 0 {
		pyroscopeConfig.ProfileTypes = append(pyroscopeConfig.ProfileTypes,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
		)
	}
	if config.BlockProfileRate > 0 {
		pyroscopeConfig.ProfileTypes = append(pyroscopeConfig.ProfileTypes,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		)
	}

	if config.ApiKey != "" {
		pyroscopeConfig.AuthToken = config.ApiKey
	}

	return pyroscopeConfig
}

// Run starts profiling. The caller should Stop() the returned profiler
// at the end of the run to flush the last profiles.
func Run(logger *logrus.Logger, config Config) (*pyroscope.Profiler, error) {
	runtime.SetMutexProfileFraction(config.MutexProfileFraction)
	runtime.SetBlockProfileRate(config.BlockProfileRate)

	return pyroscope.Start(profilerConfig(logger, config))
}
