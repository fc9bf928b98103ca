package geminilive

// Wire structs for the BidiGenerateContent websocket protocol.
// Note: the Gemini API uses camelCase for JSON field names.

// clientMessage is the envelope for all client → server messages. Exactly one
// field is set per message.
type clientMessage struct {
	Setup         *setupPayload         `json:"setup,omitempty"`
	RealtimeInput *realtimeInputPayload `json:"realtimeInput,omitempty"`
}

// setupPayload configures the session; sent once, immediately after dial.
type setupPayload struct {
	Model                    string            `json:"model"`
	GenerationConfig         *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *geminiContent    `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
}

// geminiBlob carries inline binary data, base64 encoded.
type geminiBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// realtimeInputPayload carries streaming media or text into the session.
type realtimeInputPayload struct {
	Audio *geminiBlob `json:"audio,omitempty"`
	Text  string      `json:"text,omitempty"`
}

// serverMessage is the envelope for all server → client messages.
type serverMessage struct {
	SetupComplete *struct{}            `json:"setupComplete,omitempty"`
	ServerContent *serverContent       `json:"serverContent,omitempty"`
	GoAway        *goAwayPayload       `json:"goAway,omitempty"`
	Error         *serverErrorEnvelope `json:"error,omitempty"`
}

// serverContent is one inbound conversation update. Any combination of fields
// may be present in a single message.
type serverContent struct {
	ModelTurn           *geminiContent `json:"modelTurn,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
}

type transcription struct {
	Text string `json:"text,omitempty"`
}

// goAwayPayload announces imminent server-initiated shutdown.
type goAwayPayload struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

type serverErrorEnvelope struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}
