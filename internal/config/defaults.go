package config

const (
	defaultInputRoot        = "~/splice/incoming"
	defaultOriginalsDir     = "~/splice/originals"
	defaultPreservationDir  = "~/splice/preservation"
	defaultEditDir          = "~/splice/edit"
	defaultWorkDir          = "~/.local/share/splice/work"
	defaultLogDir           = "~/.local/share/splice/logs"
	defaultExtension        = "wav"
	defaultTargetLUFS       = -23.0
	defaultToleranceLU      = 1.0
	defaultMeasureTimeout   = 600
	defaultEngine           = EngineNative
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultCommandTimeout   = 1800
	defaultWorkers          = 2
	defaultWatchQuietPeriod = 60
	defaultNotifyTimeout    = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// Audio engines accepted by tools.engine.
const (
	EngineNative = "native"
	EngineFFmpeg = "ffmpeg"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputRoot:       defaultInputRoot,
			OriginalsDir:    defaultOriginalsDir,
			PreservationDir: defaultPreservationDir,
			EditDir:         defaultEditDir,
			WorkDir:         defaultWorkDir,
			LogDir:          defaultLogDir,
		},
		Project: Project{
			Extension: defaultExtension,
		},
		Loudness: Loudness{
			TargetLUFS:     defaultTargetLUFS,
			ToleranceLU:    defaultToleranceLU,
			MeasureTimeout: defaultMeasureTimeout,
		},
		Tools: Tools{
			Engine:         defaultEngine,
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			CommandTimeout: defaultCommandTimeout,
		},
		Batch: Batch{
			Workers: defaultWorkers,
		},
		Watch: Watch{
			QuietSeconds: defaultWatchQuietPeriod,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
