// Package audioconv converts 16-bit signed little-endian PCM between sample
// rates and channel layouts.
//
// Two converters are provided behind the Converter interface:
//   - Linear - in-process linear interpolation (default, no dependencies)
//   - FFmpeg - spawns ffmpeg once per buffer (s16le in and out, aresample=async=1:first_pts=0)
//
// Stereo to mono downmixing averages the left and right channels. A trailing
// partial frame in the input is dropped.
package audioconv
