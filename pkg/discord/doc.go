// Package discord hosts realtime voice conversations in Discord voice
// channels.
//
// The /talk command joins the caller's voice channel, connects a
// realtime.Session whose playback goes to the channel, and forwards the
// channel's decoded microphone audio to the session.
package discord
