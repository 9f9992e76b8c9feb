package ffmpeg

import "time"

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath          string
	Duration          time.Duration
	Width             int
	Height            int
	FPS               float64
	SampleAspectRatio string
	Bitrate           int64
	VideoCodec        string
	HasAudio          bool
	AudioCodec        string
}

// Progress represents one block of ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	OutTime time.Duration
	Speed   string
	Done    bool
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called once per progress block as the operation executes.
type ProgressFunc func(*Progress)

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
}

// Geometry is an output geometry preset for delivery transcodes
type Geometry string

const (
	Geometry43         Geometry = "4:3"
	GeometryAnamorphic Geometry = "anamorphic 16:9"
)

// Delivery encoding settings (H.265 sized for the playback device class)
const (
	DeliveryVideoCodec  = "libx265"
	DeliveryPixelFormat = "yuv420p"
	DeliveryCodecTag    = "hvc1"
	DeliveryAudioCodec  = "aac"
	DefaultCRF          = 23
	DefaultPreset       = "slow"
	DefaultAudioBitrate = "192k"
)

// Resolution returns the scaled output size for the preset. Unknown
// presets fall back to the source frame size convention (720x480).
func (g Geometry) Resolution() (width, height int) {
	switch g {
	case Geometry43:
		return 640, 480
	case GeometryAnamorphic:
		return 854, 480
	default:
		return 720, 480
	}
}

// Valid reports whether g is one of the enumerated presets
func (g Geometry) Valid() bool {
	return g == Geometry43 || g == GeometryAnamorphic
}
