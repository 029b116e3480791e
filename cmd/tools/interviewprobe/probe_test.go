package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/visa-interview/backend/internal/catalog"
	"github.com/zhouzirui/visa-interview/backend/internal/config"
	"github.com/zhouzirui/visa-interview/backend/internal/handler"
	"github.com/zhouzirui/visa-interview/backend/internal/service/advisor"
	"github.com/zhouzirui/visa-interview/backend/internal/service/interview"
	"github.com/zhouzirui/visa-interview/backend/internal/store"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	adv, err := advisor.NewService(context.Background(), cat, nil, advisor.Config{}, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(handler.NewRouter(interview.NewService(cat, store.NewMemoryStore()), adv, config.AuthConfig{}, nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestScenariosAgainstRouter(t *testing.T) {
	srv := newServer(t)

	for _, name := range scenarioNames() {
		t.Run(name, func(t *testing.T) {
			sc, ok := lookupScenario(name)
			require.True(t, ok)

			var out bytes.Buffer
			p := &probe{baseURL: srv.URL, client: srv.Client(), out: &out}
			require.NoError(t, p.run(context.Background(), sc), out.String())
			assert.Contains(t, out.String(), "=> "+sc.Want)
		})
	}
}

func TestProbeReportsWrongExpectation(t *testing.T) {
	srv := newServer(t)

	sc, ok := lookupScenario("b2")
	require.True(t, ok)
	sc.Want = "F-1"

	p := &probe{baseURL: srv.URL, client: srv.Client(), out: &bytes.Buffer{}}
	err := p.run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected F-1")
}

func TestProbeReportsUnscriptedQuestion(t *testing.T) {
	srv := newServer(t)

	sc := scenario{Name: "partial", Answers: map[string]string{"purpose": "business"}, Want: "B-1"}
	p := &probe{baseURL: srv.URL, client: http.DefaultClient, out: &bytes.Buffer{}}
	err := p.run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unscripted question employerSponsor")
}
