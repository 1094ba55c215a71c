package config

const (
	defaultMediaDir              = "~/.local/share/hlsforge/media"
	defaultLibraryDir            = "~/.local/share/hlsforge/library"
	defaultStagingDir            = "~/.local/share/hlsforge/staging"
	defaultLogDir                = "~/.local/share/hlsforge/logs"
	defaultAPIBind               = "127.0.0.1:7488"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultSegmentSeconds        = 8
	defaultWorkerCount           = 2
	defaultQueueDepth            = 16
	defaultMinFreeSpaceGiB       = 5
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MediaDir:   defaultMediaDir,
			LibraryDir: defaultLibraryDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:          defaultFFmpegBinary,
			FFprobeBinary:         defaultFFprobeBinary,
			DefaultSegmentSeconds: defaultSegmentSeconds,
		},
		Workflow: Workflow{
			WorkerCount:     defaultWorkerCount,
			QueueDepth:      defaultQueueDepth,
			MinFreeSpaceGiB: defaultMinFreeSpaceGiB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobComplete:    true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
