package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent/internal/pipeline/rag"
	"rag-agent/internal/tool/builtin"
	"rag-agent/internal/tool/registry"
	"rag-agent/pkg/errors"
)

func TestRecognize(t *testing.T) {
	cases := []struct {
		in   string
		want Call
		ok   bool
	}{
		{"/search https://blog.cloudflare.com/", Call{Command: "/search", Tool: "fetch", Arg: "https://blog.cloudflare.com/"}, true},
		{"  /note   my cat is Miso ", Call{Command: "/note", Tool: "note", Arg: "my cat is Miso"}, true},
		{"/NOTE remember", Call{Command: "/note", Tool: "note", Arg: "remember"}, true},
		{"/search", Call{}, false},
		{"/note   ", Call{}, false},
		{"hi", Call{}, false},
		{"/searching x", Call{}, false},
		{"please /note x", Call{}, false},
	}
	for _, tc := range cases {
		got, ok := Recognize(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

type saver struct{ owner string }

func (s *saver) UpsertNote(ctx context.Context, ownerID, text, id string) rag.NoteOutcome {
	s.owner = ownerID
	return rag.NoteOutcome{Saved: "n1", Vectorized: true}
}

func newDispatcher(allow map[string]bool, s builtin.NoteSaver) *Dispatcher {
	reg := registry.New()
	reg.Register(builtin.NewFetchTool(allow))
	reg.Register(builtin.NewNoteTool(s))
	return New(reg)
}

func TestDispatcher_SearchTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 10000)))
	}))
	defer srv.Close()

	d := newDispatcher(map[string]bool{"127.0.0.1": true}, &saver{})
	call, ok := Recognize("/search " + srv.URL)
	require.True(t, ok)
	text, err := d.Execute(context.Background(), call, "u1")
	require.NoError(t, err)
	assert.LessOrEqual(t, utf8.RuneCountInString(text), 3000)
}

func TestDispatcher_SearchDisallowed(t *testing.T) {
	d := newDispatcher(map[string]bool{"blog.cloudflare.com": true}, &saver{})
	call, _ := Recognize("/search https://evil.example/")
	_, err := d.Execute(context.Background(), call, "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDomainNotAllowed))
}

func TestDispatcher_Note(t *testing.T) {
	s := &saver{}
	d := newDispatcher(nil, s)
	call, _ := Recognize("/note water the plants")
	text, err := d.Execute(context.Background(), call, "u7")
	require.NoError(t, err)
	assert.Equal(t, "u7", s.owner)
	assert.Contains(t, text, "n1")
}

func TestDispatcher_UnknownTool(t *testing.T) {
	d := New(registry.New())
	_, err := d.Execute(context.Background(), Call{Command: "/note", Tool: "note", Arg: "x"}, "u")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
