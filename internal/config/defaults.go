package config

const (
	defaultConfigPath     = "~/.config/poseconv/config.toml"
	projectConfigName     = "poseconv.toml"
	defaultImagesDir      = "Images"
	defaultLabeledDataDir = "labeled-data"
	defaultVideosDir      = "videos"
	defaultExportVersion  = "1.1"
	defaultSubset         = "default"
	defaultTaskID         = 2
	defaultWidth          = 1280
	defaultHeight         = 720
	defaultBoxLabel       = "Bounding Box"
	defaultSkeletonLabel  = "RatSkeleton"
	defaultSource         = "file"
	defaultGroupSpacing   = 40.0
	defaultPointSpacing   = 15.0
	defaultScorer         = "jm"
	defaultView           = "top"
	defaultAnimal         = "mouse"
	defaultVideoExtension = ".mkv"
	defaultEngine         = "pytorch"
	defaultWorkers        = 4
	defaultLogFormat      = "auto"
	defaultLogLevel       = "info"
)
