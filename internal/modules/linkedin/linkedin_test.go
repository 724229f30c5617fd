package linkedin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

func acme(t *testing.T) target.Target {
	t.Helper()
	tgt, err := target.FromFields(map[string]string{target.FieldName: "Acme Corp", target.FieldType: "company"})
	require.NoError(t, err)
	return tgt.WithID(7)
}

func resolve(t *testing.T, m *Search, supplied map[string]string) param.Args {
	t.Helper()
	args, err := param.Resolve(m.Args(), supplied)
	require.NoError(t, err)
	return args
}

func page(headings ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><div id=\"search\">")
	for _, h := range headings {
		b.WriteString(`<div class="g"><a href="https://linkedin.com/in/x"><h3>` + h + `</h3></a></div>`)
	}
	b.WriteString(`<div class="other"><h3>Not a result</h3></div></body></html>`)
	return b.String()
}

func serve(t *testing.T, status int, body string, seen func(*http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen(r)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunMapsHeadingToPerson(t *testing.T) {
	var got *http.Request
	srv := serve(t, http.StatusOK, page("John Smith - Software Engineer at Acme Corp - LinkedIn"), func(r *http.Request) { got = r })
	m := New(Options{BaseURL: srv.URL, Timeout: 5 * time.Second})

	var progress []event.Event
	em := event.EmitterFunc(func(e event.Event) error {
		progress = append(progress, e)
		return nil
	})
	people, err := m.Run(context.Background(), 0, acme(t), resolve(t, m, map[string]string{"target_id": "7", "limit": "10"}), em)
	require.NoError(t, err)
	require.Len(t, people, 1)

	p := people[0]
	assert.Equal(t, target.Person, p.Type)
	assert.Equal(t, "John Smith", p.Name)
	assert.Equal(t, int64(7), p.ParentID)
	fields := p.Fields()
	assert.Equal(t, "John", fields[target.FieldFirstName])
	assert.Equal(t, "Smith", fields[target.FieldLastName])
	assert.True(t, strings.HasPrefix(fields[target.FieldJobTitle], "Software Engineer"))
	assert.Equal(t, "Acme Corp", fields[target.FieldEnterprise])

	require.NotNil(t, got)
	assert.Equal(t, DefaultUserAgent, got.Header.Get("User-Agent"))
	assert.Equal(t, "10", got.URL.Query().Get("num"))
	assert.Equal(t, "site:linkedin.com/in Acme Corp", got.URL.Query().Get("q"))
	assert.Len(t, progress, 1)
}

func TestRunSplitsNameOnFirstTwoWords(t *testing.T) {
	srv := serve(t, http.StatusOK, page(
		"John Paul Smith - Sales Manager - LinkedIn",
		"Cher - Singer - LinkedIn",
	), nil)
	m := New(Options{BaseURL: srv.URL})

	people, err := m.Run(context.Background(), 0, acme(t), resolve(t, m, map[string]string{"target_id": "7"}), nil)
	require.NoError(t, err)
	require.Len(t, people, 2)

	first := people[0].Fields()
	assert.Equal(t, "John Paul Smith", people[0].Name)
	assert.Equal(t, "John", first[target.FieldFirstName])
	assert.Equal(t, "Paul", first[target.FieldLastName])

	single := people[1].Fields()
	assert.Equal(t, "Cher", people[1].Name)
	assert.Equal(t, "", single[target.FieldFirstName])
	assert.Equal(t, "", single[target.FieldLastName])
}

func TestRunWithoutMatchesReturnsEmpty(t *testing.T) {
	srv := serve(t, http.StatusOK, page(), nil)
	m := New(Options{BaseURL: srv.URL})

	people, err := m.Run(context.Background(), 0, acme(t), resolve(t, m, map[string]string{"target_id": "7"}), nil)
	require.NoError(t, err)
	assert.NotNil(t, people)
	assert.Empty(t, people)
}

func TestRunUsesDefaultLimit(t *testing.T) {
	var num string
	srv := serve(t, http.StatusOK, page(), func(r *http.Request) { num = r.URL.Query().Get("num") })
	m := New(Options{BaseURL: srv.URL})

	_, err := m.Run(context.Background(), 0, acme(t), resolve(t, m, map[string]string{"target_id": "7", "limit": ""}), nil)
	require.NoError(t, err)
	assert.Equal(t, "10", num)
}

func TestRunIsAllOrNothing(t *testing.T) {
	// One good heading followed by one without a job title: the whole run fails.
	srv := serve(t, http.StatusOK, page("Jane Doe - CTO - LinkedIn", "Just A Name"), nil)
	m := New(Options{BaseURL: srv.URL})

	people, err := m.Run(context.Background(), 0, acme(t), resolve(t, m, map[string]string{"target_id": "7"}), nil)
	assert.Nil(t, people)
	var ee *modules.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, Name, ee.Module)
}

func TestRunFailures(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	blocked := serve(t, http.StatusTooManyRequests, "slow down", nil)

	cases := map[string]struct {
		baseURL string
		limit   string
	}{
		"network error":  {downURL, "10"},
		"non-success":    {blocked.URL, "10"},
		"invalid limit":  {blocked.URL, "ten"},
		"negative limit": {blocked.URL, "-1"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			m := New(Options{BaseURL: tc.baseURL, Timeout: 2 * time.Second})
			_, err := m.Run(context.Background(), 0, acme(t), resolve(t, m, map[string]string{"target_id": "7", "limit": tc.limit}), nil)
			var ee *modules.ExecutionError
			assert.True(t, errors.As(err, &ee), "got %v", err)
		})
	}
}

func TestMetadataIsStable(t *testing.T) {
	m := New(Options{})
	first := modules.Info(m)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, modules.Info(m))
	}
	assert.Equal(t, "linkedin.search", first.Name)
	assert.Equal(t, target.Company, first.TargetType)
	require.Len(t, first.Args, 3)
	assert.True(t, first.Args[0].Required)
	assert.False(t, first.Args[0].Mutable)
	assert.False(t, first.Args[1].Required)
	assert.True(t, first.Args[2].Mutable)
	assert.Equal(t, "10", first.Args[2].DefaultValue())
}
