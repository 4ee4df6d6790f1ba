// ABOUTME: Live speech session wire protocol package
// ABOUTME: Defines session messages and the WebSocket client
// Package protocol implements the bidirectional live speech session.
//
// The client streams captured PCM16 frames to the speech service and
// receives synthesized audio, transcriptions and turn events in return.
//
// Example:
//
//	client := protocol.NewLiveClient(protocol.Config{URL: "wss://host/live", Model: "speech-live"})
//	err := client.Connect(ctx)
//	err = client.SendAudio(ctx, frame)
//	for chunk := range client.Audio { ... }
package protocol
