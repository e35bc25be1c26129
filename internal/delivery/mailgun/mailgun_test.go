package mailgun

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/failure"
)

// upload is what the fake API saw for one request.
type upload struct {
	path    string
	user    string
	to      []string
	message string
}

// fakeAPI serves the Mailgun MIME endpoint, recording uploads.
type fakeAPI struct {
	mu      sync.Mutex
	status  int
	uploads []upload
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u := upload{path: r.URL.Path}
	u.user, _, _ = r.BasicAuth()
	if err := r.ParseMultipartForm(1 << 20); err == nil {
		u.to = r.MultipartForm.Value["to"]
		if files := r.MultipartForm.File["message"]; len(files) > 0 {
			if fh, err := files[0].Open(); err == nil {
				body, _ := io.ReadAll(fh)
				fh.Close()
				u.message = string(body)
			}
		}
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, u)
	status := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"'from' parameter is not a valid address"}`))
		return
	}
	_, _ = w.Write([]byte(`{"id":"<20240309.1@mg.example.com>","message":"Queued. Thank you."}`))
}

func testMessage(t *testing.T) *compose.Message {
	t.Helper()
	c := compose.New(compose.Config{From: "someone@another.com", To: "bob@bobtestingmailslurper.com"})
	msg, err := c.Compose(compose.PlainText, compose.Content{Index: 4, Now: time.Unix(0, 0)})
	require.NoError(t, err)
	return msg
}

func TestSend_UploadsMIME(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	tr := New(Config{Domain: "mg.example.com", APIKey: "key-test", APIBase: srv.URL + "/v3"})
	require.NoError(t, tr.Send(context.Background(), testMessage(t)))

	require.Len(t, api.uploads, 1)
	got := api.uploads[0]
	assert.True(t, strings.HasSuffix(got.path, "/mg.example.com/messages.mime"), got.path)
	assert.Equal(t, "api", got.user)
	assert.Equal(t, []string{"bob@bobtestingmailslurper.com"}, got.to)
	assert.Contains(t, got.message, "Subject: Text Mail #4\r\n")
	assert.Equal(t, "mailgun", tr.Name())
}

func TestSend_RejectionIsProtocolError(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{status: http.StatusBadRequest}
	srv := httptest.NewServer(api)
	defer srv.Close()

	tr := New(Config{Domain: "mg.example.com", APIKey: "key-test", APIBase: srv.URL + "/v3"})
	err := tr.Send(context.Background(), testMessage(t))
	require.Error(t, err)

	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, failure.Protocol, fe.Kind)
	assert.Equal(t, http.StatusBadRequest, fe.Code)
	assert.Len(t, api.uploads, 1, "exactly one attempt")
}

func TestSend_UnreachableIsConnectionError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/v3"
	srv.Close()

	tr := New(Config{Domain: "mg.example.com", APIKey: "key-test", APIBase: base})
	err := tr.Send(context.Background(), testMessage(t))
	assert.True(t, failure.Is(err, failure.Connection), "got %v", err)
}
