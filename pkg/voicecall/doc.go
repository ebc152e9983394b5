// Package voicecall implements the client-side session manager for live
// voice calls between an end user and an AI creator agent.
//
// A CallSession owns one call attempt end to end: microphone permission
// acquisition, access-token exchange, transport connection with backoff,
// call-phase tracking (connecting, listening, talking, thinking, ended),
// per-participant speaking detection with asymmetric debounce, streamed
// transcription ingestion, a wall-clock duration policy, and remote audio
// playback. All mutable session state is owned by a single event loop;
// transport callbacks, timers, and external API calls never touch it
// directly.
//
// The real-time media transport is abstracted behind the Transport
// interface (see pkg/rtc for the WebRTC implementation) and the server
// side behind the Backend interface (see pkg/backend).
package voicecall
