package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/khanghh/kbooks/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	transcript string
	call       *FunctionCall
	reply      string
	speech     []byte
	err        error

	gotAudio  []byte
	gotResult []byte
}

func (p *fakeProvider) Transcribe(ctx context.Context, audio []byte) (string, error) {
	p.gotAudio = audio
	return p.transcript, p.err
}

func (p *fakeProvider) SelectFunction(ctx context.Context, text string, defs []FunctionDefinition) (*FunctionCall, error) {
	return p.call, nil
}

func (p *fakeProvider) Respond(ctx context.Context, text string, call *FunctionCall, result []byte) (string, error) {
	p.gotResult = result
	return p.reply, nil
}

func (p *fakeProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return p.speech, nil
}

func newFinancialServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cash":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{"amount": 2500, "currency": "USD"}})
		case "/revenue":
			assert.Equal(t, "true", r.URL.Query().Get("compare"))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "failed to initialize Zoho Books service: no tokens"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type memoryRecorder struct {
	mu       sync.Mutex
	requests []storeMessageRequest
}

func newMemoryServer(t *testing.T, rec *memoryRecorder) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message", r.URL.Path)
		var req storeMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		rec.mu.Lock()
		rec.requests = append(rec.requests, req)
		rec.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDecodeAudio(t *testing.T) {
	data, err := DecodeAudio(base64.StdEncoding.EncodeToString([]byte("RIFF")))
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), data)

	_, err = DecodeAudio("https://example.com/audio.webm")
	assert.ErrorIs(t, err, ErrInvalidAudio)
}

func TestAssistant_Handle(t *testing.T) {
	financial := newFinancialServer(t)
	rec := &memoryRecorder{}
	memory := newMemoryServer(t, rec)

	provider := &fakeProvider{
		transcript: "How much cash do we have?",
		call:       &FunctionCall{ID: "call_1", Name: FuncGetCashOnHand, RawArguments: "{}"},
		reply:      "You have $2,500 in the bank.",
		speech:     []byte("mp3-bytes"),
	}
	a := NewAssistant(provider,
		NewFinancialClient(financial.URL, financial.Client()),
		NewMemoryClient(memory.URL, memory.Client()))

	resp, err := a.Handle(context.Background(), VoiceRequest{
		Audio:     base64.StdEncoding.EncodeToString([]byte("webm-bytes")),
		SessionID: "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("webm-bytes"), provider.gotAudio)
	assert.Equal(t, "You have $2,500 in the bank.", resp.Text)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3-bytes")), resp.Audio)
	assert.Equal(t, "s1", resp.Context.SessionID)
	assert.Equal(t, FuncGetCashOnHand, resp.Context.LastFunction)
	require.NotNil(t, resp.Context.LastResult)
	assert.Equal(t, "The current cash on hand is $2,500.", resp.Context.LastResult.ReadableResponse)
	assert.Contains(t, string(provider.gotResult), "The current cash on hand is $2,500.")

	require.Len(t, rec.requests, 2)
	assert.Equal(t, model.RoleUser, rec.requests[0].Message.Role)
	assert.Equal(t, "How much cash do we have?", rec.requests[0].Message.Content)
	assert.Nil(t, rec.requests[0].Context)
	assert.Equal(t, model.RoleAssistant, rec.requests[1].Message.Role)
	require.NotNil(t, rec.requests[1].Context)
	assert.Equal(t, FuncGetCashOnHand, rec.requests[1].Context.LastFunction)

	encoded, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	voiceCtx := decoded["context"].(map[string]any)
	assert.Equal(t, "s1", voiceCtx["sessionId"])
	assert.Equal(t, FuncGetCashOnHand, voiceCtx["lastFunction"])
}

func TestAssistant_GeneratesSessionID(t *testing.T) {
	provider := &fakeProvider{
		call:   &FunctionCall{Name: FuncGenerateResponse, RawArguments: `{"text":"Hello"}`},
		reply:  "Hello",
		speech: []byte("x"),
	}
	a := NewAssistant(provider, &fakeSource{}, nil)

	resp, err := a.Handle(context.Background(), VoiceRequest{Audio: base64.StdEncoding.EncodeToString([]byte("a"))})
	require.NoError(t, err)
	assert.Len(t, resp.Context.SessionID, 36)
	assert.Equal(t, "Hello", resp.Context.LastArguments.Text)
}

func TestAssistant_Errors(t *testing.T) {
	financial := newFinancialServer(t)
	audio := base64.StdEncoding.EncodeToString([]byte("a"))

	_, err := NewAssistant(&fakeProvider{}, &fakeSource{}, nil).Handle(context.Background(), VoiceRequest{})
	assert.ErrorIs(t, err, ErrAudioRequired)

	_, err = NewAssistant(&fakeProvider{}, &fakeSource{}, nil).Handle(context.Background(), VoiceRequest{Audio: "not base64!"})
	assert.ErrorIs(t, err, ErrInvalidAudio)

	unknown := &fakeProvider{call: &FunctionCall{Name: "wireMoney"}}
	_, err = NewAssistant(unknown, &fakeSource{}, nil).Handle(context.Background(), VoiceRequest{Audio: audio})
	assert.EqualError(t, err, "function wireMoney not implemented")

	revenue := &fakeProvider{call: &FunctionCall{ID: "c", Name: FuncGetRevenueForPeriod, RawArguments: `{"period":"this_month","compareWithPrevious":true}`}}
	_, err = NewAssistant(revenue, NewFinancialClient(financial.URL, financial.Client()), nil).Handle(context.Background(), VoiceRequest{Audio: audio})
	assert.EqualError(t, err, "failed to retrieve revenue data: failed to initialize Zoho Books service: no tokens")

	cause := errors.New("failed to transcribe audio: quota exceeded")
	_, err = NewAssistant(&fakeProvider{err: cause}, &fakeSource{}, nil).Handle(context.Background(), VoiceRequest{Audio: audio})
	assert.ErrorIs(t, err, cause)
}

func TestAssistant_RecorderFailureIsNotFatal(t *testing.T) {
	memory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "database down"})
	}))
	defer memory.Close()

	provider := &fakeProvider{
		call:   &FunctionCall{Name: FuncGenerateResponse, RawArguments: `{"text":"Hi"}`},
		reply:  "Hi",
		speech: []byte("x"),
	}
	a := NewAssistant(provider, &fakeSource{}, NewMemoryClient(memory.URL, memory.Client()))

	resp, err := a.Handle(context.Background(), VoiceRequest{Audio: base64.StdEncoding.EncodeToString([]byte("a"))})
	require.NoError(t, err)
	assert.Equal(t, "Hi", resp.Text)
}
