// Package playback turns an ordered stream of raw PCM into audible output.
//
// A Stream is the continuous-write side used by the bridge. It is opened
// lazily, and each open starts one playback episode on a Player, which
// consumes the raw bytes from an io.Reader until end-of-data.
//
// Players:
//   - exec   - pipes PCM into a local command (aplay, ffplay, gst-launch)
//   - rtp    - Opus over RTP/UDP
//   - track  - Opus samples on a WebRTC local track
//   - mock   - records everything for tests
//
// The Discord voice player lives in package discord.
package playback
