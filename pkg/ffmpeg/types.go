package ffmpeg

// AudioMetadata represents metadata extracted from an audio file
type AudioMetadata struct {
	Duration       float64 `json:"duration"`    // Duration in seconds
	SampleRate     int     `json:"sample_rate"` // Sample rate in Hz
	Channels       int     `json:"channels"`    // Number of audio channels
	Bitrate        int     `json:"bitrate"`     // Bitrate in bits per second
	Format         string  `json:"format"`      // Container format (mp3, m4a, etc.)
	Codec          string  `json:"codec"`       // Audio codec
	Size           int64   `json:"size"`        // File size in bytes
	Title          string  `json:"title"`       // Title metadata
	Artist         string  `json:"artist"`      // Artist metadata
	Album          string  `json:"album"`       // Album metadata
	HasAudioStream bool    `json:"has_audio_stream"`
}
