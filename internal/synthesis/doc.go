// Package synthesis defines the streaming speech-synthesis provider
// abstraction and its implementations: the ElevenLabs websocket client used
// in production and an in-process mock for tests.
package synthesis
