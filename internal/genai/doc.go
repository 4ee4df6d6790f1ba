// ABOUTME: Generative media service clients
// ABOUTME: Batch speech synthesis, greeting text and long-running video generation
// Package genai talks to the hosted generation services over HTTP JSON.
//
// SpeechClient turns greeting text into base64 PCM16 speech. VideoClient
// starts a long-running video generation and polls it until the video URI
// is available. Both retry transient failures with exponential backoff.
package genai
