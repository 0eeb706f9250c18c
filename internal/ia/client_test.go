package ia

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "assistente-ia", 2*time.Second)
}

func TestClient_Invoke(t *testing.T) {
	var recebido Request
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/assistente-ia", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&recebido))
		_, _ = w.Write([]byte(`{"success":true,"resposta":"Sugestões prontas","metadata":{"tokens":42}}`))
	})

	resp, err := c.Invoke(context.Background(), Request{Prompt: "Sugira atividades", Tipo: "sugestoes_atividades", AlunoNome: "Ana"}, "Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "Sugestões prontas", resp.Resposta)
	assert.EqualValues(t, 42, resp.Metadata["tokens"])
	assert.Equal(t, "Ana", recebido.AlunoNome)
	assert.Equal(t, "sugestoes_atividades", recebido.Tipo)
}

func TestClient_Falhas(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"success false", http.StatusOK, `{"success":false,"error":"cota excedida"}`, "cota excedida"},
		{"status 500 com corpo json", http.StatusInternalServerError, `{"success":true}`, "status 500"},
		{"corpo inválido", http.StatusBadGateway, `<html>erro</html>`, "resposta inválida"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Invoke(context.Background(), Request{Prompt: "x", Tipo: "conversa_livre"}, "Bearer abc")
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrAIService)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestClient_SemConfiguracaoOuSemToken(t *testing.T) {
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)

	_, err := NewClient("", "assistente-ia", time.Second).Invoke(context.Background(), Request{Prompt: "x"}, "Bearer abc")
	assert.ErrorIs(t, err, appErrors.ErrAIService)

	chamado := false
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) { chamado = true })
	_, err = c.Invoke(context.Background(), Request{Prompt: "x"}, "")
	assert.ErrorIs(t, err, appErrors.ErrNotAuthenticated)
	assert.False(t, chamado)
}

func TestClient_ErroDeTransporte(t *testing.T) {
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "assistente-ia", time.Second).Invoke(context.Background(), Request{Prompt: "x"}, "Bearer abc")
	assert.ErrorIs(t, err, appErrors.ErrAIService)
}
