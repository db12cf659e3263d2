// Package audio defines the track file model and the Toolkit capability
// interface that the reconstruction stages delegate sample-level work to.
//
// Two Toolkit implementations exist: the native PCM WAV engine in
// internal/media/wav and the ffmpeg-backed engine in internal/services/ffmpeg.
package audio
