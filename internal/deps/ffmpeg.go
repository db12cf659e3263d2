package deps

import "strings"

// Requirements lists the external tools for the configured audio engine. The
// native engine handles PCM WAV in-process, so ffmpeg and ffprobe are only
// reported as optional there.
func Requirements(engine, ffmpegBinary, ffprobeBinary string) []Requirement {
	optional := strings.TrimSpace(engine) != "ffmpeg"
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Joins, gains and splits non-WAV masters",
			Optional:    optional,
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Reads stream format and sample counts",
			Optional:    optional,
		},
	}
}

// Missing returns the required statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
