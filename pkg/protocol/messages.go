// ABOUTME: Live session message type definitions
// ABOUTME: Defines setup, realtime input and server content messages
package protocol

import "github.com/greetcast/greetcast-go/pkg/audio/codec"

// ClientMessage is the top-level wrapper for outbound messages; exactly one
// field is set
type ClientMessage struct {
	Setup         *Setup         `json:"setup,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
	ClientContent *ClientContent `json:"clientContent,omitempty"`
}

// Setup opens the session
type Setup struct {
	Model                   string            `json:"model"`
	SessionID               string            `json:"sessionId,omitempty"`
	GenerationConfig        *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction       *Content          `json:"systemInstruction,omitempty"`
	InputAudioTranscription *struct{}         `json:"inputAudioTranscription,omitempty"`
}

// GenerationConfig selects the response modality and voice
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// SpeechConfig selects a prebuilt voice
type SpeechConfig struct {
	VoiceConfig VoiceConfig `json:"voiceConfig"`
}

// VoiceConfig wraps the prebuilt voice choice
type VoiceConfig struct {
	PrebuiltVoiceConfig PrebuiltVoice `json:"prebuiltVoiceConfig"`
}

// PrebuiltVoice names a service voice
type PrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

// RealtimeInput carries captured audio frames
type RealtimeInput struct {
	MediaChunks []codec.EncodedFrame `json:"mediaChunks"`
}

// ClientContent sends a complete text turn
type ClientContent struct {
	Turns        []Content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

// Content is a role-tagged list of parts
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is either text or inline media
type Part struct {
	Text       string              `json:"text,omitempty"`
	InlineData *codec.EncodedFrame `json:"inlineData,omitempty"`
}

// ServerMessage is the top-level wrapper for inbound messages
type ServerMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	GoAway        *GoAway        `json:"goAway,omitempty"`
}

// ServerContent carries model output for the current turn
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// Transcription is recognized text for one side of the conversation
type Transcription struct {
	Text string `json:"text"`
}

// GoAway warns that the server will close the session
type GoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

// Transcript is text delivered to the application
type Transcript struct {
	// Role is "user" for recognized speech, "model" for model text
	Role string
	Text string
}
