package geminilive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vyakaran/tutorlive/pkg/core/audio"
	"github.com/vyakaran/tutorlive/pkg/core/live"
)

// fakeEndpoint runs a BidiGenerateContent stand-in: it acknowledges setup and
// then hands the connection to script.
func fakeEndpoint(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "" {
			t.Error("dial without api key")
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var setup clientMessage
		if err := conn.ReadJSON(&setup); err != nil {
			t.Errorf("read setup: %v", err)
			return
		}
		if setup.Setup == nil {
			t.Error("first client frame is not setup")
			return
		}
		if !strings.HasPrefix(setup.Setup.Model, "models/") {
			t.Errorf("model %q lacks models/ prefix", setup.Setup.Model)
		}
		if setup.Setup.InputAudioTranscription == nil || setup.Setup.OutputAudioTranscription == nil {
			t.Error("transcription not enabled for both directions")
		}
		if err := conn.WriteJSON(serverMessage{SetupComplete: &struct{}{}}); err != nil {
			t.Errorf("write setup ack: %v", err)
			return
		}
		script(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialFake(t *testing.T, srv *httptest.Server) live.Transport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	transport, err := Connect(ctx, Config{APIKey: "test-key", BaseURL: wsURL(srv)}, live.SetupParams{
		Model:             "gemini-2.5-flash-native-audio-preview-09-2025",
		SystemInstruction: "system text",
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return transport
}

func TestConnect_SetupHandshake(t *testing.T) {
	received := make(chan clientMessage, 2)
	srv := fakeEndpoint(t, func(conn *websocket.Conn) {
		for i := 0; i < 2; i++ {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- msg
		}
	})
	defer srv.Close()

	transport := dialFake(t, srv)
	defer transport.Close()

	pcm := audio.EncodeFrame([]float32{0.25, -0.25})
	if err := transport.SendAudio(pcm); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	if err := transport.SendText("Start"); err != nil {
		t.Fatalf("send text: %v", err)
	}

	audioMsg := <-received
	if audioMsg.RealtimeInput == nil || audioMsg.RealtimeInput.Audio == nil {
		t.Fatal("first message is not realtime audio")
	}
	if audioMsg.RealtimeInput.Audio.MIMEType != inputMIMEType {
		t.Errorf("mime = %q, want %q", audioMsg.RealtimeInput.Audio.MIMEType, inputMIMEType)
	}
	raw, err := audio.DecodeBase64(audioMsg.RealtimeInput.Audio.Data)
	if err != nil || len(raw) != len(pcm) {
		t.Errorf("audio payload did not round trip: %v (%d bytes)", err, len(raw))
	}

	textMsg := <-received
	if textMsg.RealtimeInput == nil || textMsg.RealtimeInput.Text != "Start" {
		t.Fatalf("second message = %+v, want realtime text Start", textMsg)
	}
}

func TestSession_EventsArriveInOrder(t *testing.T) {
	srv := fakeEndpoint(t, func(conn *websocket.Conn) {
		frames := []serverMessage{
			{ServerContent: &serverContent{InputTranscription: &transcription{Text: "नम"}}},
			{ServerContent: &serverContent{InputTranscription: &transcription{Text: "स्कार"}}},
			{ServerContent: &serverContent{
				OutputTranscription: &transcription{Text: "स्वागत"},
				ModelTurn: &geminiContent{Parts: []geminiPart{{
					InlineData: &geminiBlob{MIMEType: "audio/pcm;rate=24000", Data: audio.EncodeBase64(make([]byte, 480))},
				}}},
			}},
			{ServerContent: &serverContent{TurnComplete: true}},
		}
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	})
	defer srv.Close()

	transport := dialFake(t, srv)
	defer transport.Close()

	var got []live.ServerEvent
	for ev := range transport.Events() {
		if ev.Err != nil {
			t.Fatalf("unexpected terminal error: %v", ev.Err)
		}
		got = append(got, ev)
	}

	if len(got) != 4 {
		t.Fatalf("got %d events, want 4", len(got))
	}
	if got[0].InputTranscription != "नम" || got[1].InputTranscription != "स्कार" {
		t.Errorf("input transcriptions out of order: %+v", got[:2])
	}
	if got[2].OutputTranscription != "स्वागत" || len(got[2].Audio) != 480 {
		t.Errorf("combined frame = %+v", got[2])
	}
	if !got[3].TurnComplete {
		t.Errorf("final event lacks turn complete")
	}
}

func TestSession_RemoteErrorIsTerminal(t *testing.T) {
	srv := fakeEndpoint(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(serverMessage{Error: &serverErrorEnvelope{
			Code: 400, Status: "INVALID_ARGUMENT", Message: "Invalid argument: bad frame",
		}})
	})
	defer srv.Close()

	transport := dialFake(t, srv)
	defer transport.Close()

	ev, ok := <-transport.Events()
	if !ok || ev.Err == nil {
		t.Fatalf("want terminal error event, got %+v ok=%v", ev, ok)
	}
	if !strings.Contains(ev.Err.Error(), "Invalid argument") {
		t.Errorf("error message lost: %v", ev.Err)
	}
	if _, ok := <-transport.Events(); ok {
		t.Error("events channel not closed after terminal error")
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	srv := fakeEndpoint(t, func(conn *websocket.Conn) {
		// Hold the connection open until the client closes.
		_, _, _ = conn.ReadMessage()
	})
	defer srv.Close()

	transport := dialFake(t, srv)
	if err := transport.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := transport.SendAudio([]byte{0, 0}); err == nil {
		t.Error("send after close should fail")
	}

	// The reader must quietly end without surfacing a spurious error.
	select {
	case ev, ok := <-transport.Events():
		if ok && ev.Err != nil {
			t.Errorf("spurious error after local close: %v", ev.Err)
		}
	case <-time.After(2 * time.Second):
		t.Error("events channel did not close after Close")
	}
}

func TestToServerEvent_BadBase64DropsOnlyAudio(t *testing.T) {
	ev, err := toServerEvent(&serverContent{
		OutputTranscription: &transcription{Text: "ok"},
		ModelTurn: &geminiContent{Parts: []geminiPart{{
			InlineData: &geminiBlob{MIMEType: "audio/pcm;rate=24000", Data: "@@not-base64@@"},
		}}},
	})
	if err == nil {
		t.Fatal("want base64 error")
	}
	if ev.OutputTranscription != "ok" {
		t.Errorf("transcription lost alongside bad audio: %+v", ev)
	}
	if len(ev.Audio) != 0 {
		t.Errorf("bad audio kept: %d bytes", len(ev.Audio))
	}
}

func TestSetupPayloadShape(t *testing.T) {
	msg := clientMessage{Setup: &setupPayload{
		Model:                    modelPath("gemini-2.5-flash-native-audio-preview-09-2025"),
		GenerationConfig:         &generationConfig{ResponseModalities: []string{"AUDIO"}},
		SystemInstruction:        &geminiContent{Parts: []geminiPart{{Text: "hello"}}},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{
		`"model":"models/gemini-2.5-flash-native-audio-preview-09-2025"`,
		`"responseModalities":["AUDIO"]`,
		`"inputAudioTranscription":{}`,
		`"outputAudioTranscription":{}`,
		`"systemInstruction"`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("setup json missing %s: %s", want, data)
		}
	}
}
