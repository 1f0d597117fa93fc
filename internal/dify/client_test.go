// ABOUTME: Tests for the Dify client against an httptest server
// ABOUTME: Covers optional request fields, concurrent uploads, error propagation, and the probe

package dify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDify records what the client sends and answers like Dify would.
type fakeDify struct {
	mu          sync.Mutex
	chatBodies  []map[string]any
	uploads     []string
	uploadUsers []string
	uploadTypes []string
	chatCalls   atomic.Int32
	failUpload  string // filename whose upload returns 500
	chatStatus  int
	chatError   string
}

func (f *fakeDify) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(10<<20))
		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)

		f.mu.Lock()
		f.uploads = append(f.uploads, hdr.Filename+":"+string(content))
		f.uploadUsers = append(f.uploadUsers, r.FormValue("user"))
		f.uploadTypes = append(f.uploadTypes, hdr.Header.Get("Content-Type"))
		f.mu.Unlock()

		if hdr.Filename == f.failUpload {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"code":"upload_failed","message":"storage full","status":500}`))
			return
		}
		_ = json.NewEncoder(w).Encode(UploadResponse{ID: "file-" + hdr.Filename, Name: hdr.Filename})
	})
	mux.HandleFunc("/chat-messages", func(w http.ResponseWriter, r *http.Request) {
		f.chatCalls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.chatBodies = append(f.chatBodies, body)
		f.mu.Unlock()

		if f.chatStatus != 0 {
			w.WriteHeader(f.chatStatus)
			_, _ = w.Write([]byte(f.chatError))
			return
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Answer:         "4",
			ConversationID: "conv-42",
			MessageID:      "msg-1",
			CreatedAt:      1700000000,
		})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeDify) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/", APIKey: "test-key"}, nil)
}

func image(name, content string) FileInfo {
	return FileInfo{Data: DataURI("image/png", []byte(content)), Name: name, MimeType: "image/png"}
}

func TestSendMessage_NoConversationIDOmitsField(t *testing.T) {
	f := &fakeDify{}
	client := newTestClient(t, f)

	resp, err := client.SendMessage(context.Background(), "what is 2+2?", "U9", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "4", resp.Answer)
	assert.Equal(t, "conv-42", resp.ConversationID)
	assert.Equal(t, "msg-1", resp.MessageID)
	assert.Equal(t, int64(1700000000), resp.CreatedAt)

	require.Len(t, f.chatBodies, 1)
	body := f.chatBodies[0]
	assert.NotContains(t, body, "conversation_id")
	assert.NotContains(t, body, "files")
	assert.Equal(t, "what is 2+2?", body["query"])
	assert.Equal(t, "U9", body["user"])
	assert.Equal(t, "blocking", body["response_mode"])
	assert.Equal(t, map[string]any{}, body["inputs"])
}

func TestSendMessage_KnownConversationIDSentVerbatim(t *testing.T) {
	f := &fakeDify{}
	client := newTestClient(t, f)

	_, err := client.SendMessage(context.Background(), "and 3+3?", "U9", "conv-42", nil)
	require.NoError(t, err)

	require.Len(t, f.chatBodies, 1)
	assert.Equal(t, "conv-42", f.chatBodies[0]["conversation_id"])
}

func TestSendMessage_UploadsFilesInOrder(t *testing.T) {
	f := &fakeDify{}
	client := newTestClient(t, f)

	files := []FileInfo{image("a.png", "AAA"), image("b.png", "BBB"), image("c.png", "CCC")}
	_, err := client.SendMessage(context.Background(), "describe", "U9", "", files)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a.png:AAA", "b.png:BBB", "c.png:CCC"}, f.uploads)
	for _, user := range f.uploadUsers {
		assert.Equal(t, DefaultUploadUser, user)
	}
	for _, ct := range f.uploadTypes {
		assert.Equal(t, "image/png", ct)
	}

	require.Len(t, f.chatBodies, 1)
	refs, ok := f.chatBodies[0]["files"].([]any)
	require.True(t, ok)
	require.Len(t, refs, 3)
	for i, want := range []string{"file-a.png", "file-b.png", "file-c.png"} {
		ref := refs[i].(map[string]any)
		assert.Equal(t, "image", ref["type"])
		assert.Equal(t, "local_file", ref["transfer_method"])
		assert.Equal(t, want, ref["upload_file_id"])
	}
}

func TestSendMessage_UploadFailureSkipsChat(t *testing.T) {
	f := &fakeDify{failUpload: "b.png"}
	client := newTestClient(t, f)

	files := []FileInfo{image("a.png", "AAA"), image("b.png", "BBB")}
	_, err := client.SendMessage(context.Background(), "describe", "U9", "", files)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "storage full")
	assert.Equal(t, int32(0), f.chatCalls.Load(), "chat endpoint must not be called")
}

func TestSendMessage_InvalidDataURISkipsChat(t *testing.T) {
	f := &fakeDify{}
	client := newTestClient(t, f)

	files := []FileInfo{{Data: "not-a-data-uri", Name: "x.png", MimeType: "image/png"}}
	_, err := client.SendMessage(context.Background(), "describe", "U9", "", files)
	require.ErrorIs(t, err, ErrInvalidDataURI)
	assert.Equal(t, int32(0), f.chatCalls.Load())
}

func TestSendMessage_BackendMessagePropagated(t *testing.T) {
	f := &fakeDify{
		chatStatus: http.StatusBadRequest,
		chatError:  `{"code":"invalid_param","message":"Conversation Not Exists.","status":400}`,
	}
	client := newTestClient(t, f)

	_, err := client.SendMessage(context.Background(), "hi", "U9", "gone", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_param", apiErr.Code)
	assert.Equal(t, "dify API error: Conversation Not Exists.", err.Error())
}

func TestSendMessage_NonJSONErrorKeepsStatus(t *testing.T) {
	f := &fakeDify{chatStatus: http.StatusBadGateway, chatError: "upstream down"}
	client := newTestClient(t, f)

	_, err := client.SendMessage(context.Background(), "hi", "U9", "", nil)
	require.Error(t, err)
	assert.Equal(t, "dify API error: status 502", err.Error())
}

func TestSendMessage_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(Options{BaseURL: srv.URL, APIKey: "test-key"}, nil)

	_, err := client.SendMessage(context.Background(), "hi", "U9", "", nil)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "dify API error: "))
}

func TestTestConnection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"not found still reachable", http.StatusNotFound, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"server error", http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/parameters", r.URL.Path)
				assert.Equal(t, http.MethodGet, r.Method)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient(Options{BaseURL: srv.URL, APIKey: "test-key"}, nil)
			assert.Equal(t, tt.want, client.TestConnection(context.Background()))
		})
	}
}

func TestTestConnection_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, APIKey: "test-key"}, nil)
	assert.False(t, client.TestConnection(context.Background()))
}

func TestParseDataURI(t *testing.T) {
	data, err := ParseDataURI(DataURI("image/jpeg", []byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = ParseDataURI("data:image/png;base64")
	assert.ErrorIs(t, err, ErrInvalidDataURI)

	_, err = ParseDataURI("data:image/png,plain")
	assert.ErrorIs(t, err, ErrInvalidDataURI)

	_, err = ParseDataURI("data:image/png;base64,!!!")
	assert.ErrorIs(t, err, ErrInvalidDataURI)
}

func TestDataURI_Format(t *testing.T) {
	assert.Equal(t, "data:image/gif;base64,aGk=", DataURI("image/gif", []byte("hi")))
}
