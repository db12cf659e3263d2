// Package wav is the native audio.Toolkit for integer PCM RIFF/WAVE files.
//
// Joins and cuts copy sample bytes verbatim, so a split of a joined master
// reproduces every input track exactly. Gain is applied in the integer
// domain at the source bit depth and fails instead of clipping. Integrated
// loudness follows ITU-R BS.1770 (K-weighting, 400 ms blocks with 75%
// overlap, absolute and relative gating).
//
// WAVE_FORMAT_EXTENSIBLE headers are accepted when the subformat is PCM.
// Float and compressed encodings are rejected; use the ffmpeg engine for those.
package wav
