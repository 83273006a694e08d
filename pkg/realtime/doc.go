// Package realtime bridges a realtime speech session with a local playback
// stream.
//
// A Session owns one websocket connection to a Realtime endpoint. Inbound
// audio deltas are queued in arrival order and drained by a single goroutine
// that converts each chunk to the playback format and writes it to a
// playback.Stream. The read loop never blocks on conversion or playback.
//
// Outbound microphone audio is sent with AppendInputAudio.
package realtime
