// Package ia chama a função remota do assistente de IA.
package ia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
)

// Request é o corpo enviado à função de IA.
type Request struct {
	Prompt    string `json:"prompt"`
	AlunoNome string `json:"alunoNome,omitempty"`
	Tipo      string `json:"tipo"`
	Contexto  string `json:"contexto,omitempty"`
}

// Response é a resposta da função de IA.
type Response struct {
	Success  bool                   `json:"success"`
	Resposta string                 `json:"resposta,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Invoker executa uma função remota autenticada.
type Invoker interface {
	Invoke(ctx context.Context, req Request, authHeader string) (*Response, error)
}

// Client é o Invoker HTTP. Não há nova tentativa em caso de falha.
type Client struct {
	baseURL      string
	functionName string
	httpClient   *http.Client
}

// NewClient cria o cliente. Um timeout zero usa o padrão do http.Client.
func NewClient(baseURL, functionName string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		functionName: functionName,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Invoke envia req com o cabeçalho Authorization informado.
// Falha de transporte ou success=false viram ErrAIService.
func (c *Client) Invoke(ctx context.Context, req Request, authHeader string) (*Response, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: APP_IA_FUNCTIONS_URL não configurada", appErrors.ErrAIService)
	}
	if authHeader == "" {
		return nil, appErrors.ErrNotAuthenticated
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: falha ao serializar requisição: %v", appErrors.ErrAIService, err)
	}
	url := c.baseURL + "/" + c.functionName
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrAIService, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", authHeader)

	appLogger.WithFields(logrus.Fields{"funcao": c.functionName, "tipo": req.Tipo}).Debug("Chamando função de IA")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		appLogger.Errorf("Erro de transporte na função de IA '%s': %v", c.functionName, err)
		return nil, fmt.Errorf("%w: %v", appErrors.ErrAIService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: falha ao ler resposta: %v", appErrors.ErrAIService, err)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		appLogger.Errorf("Resposta inválida da função de IA (status %d): %s", resp.StatusCode, truncate(string(raw), 200))
		return nil, fmt.Errorf("%w: resposta inválida (status %d)", appErrors.ErrAIService, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		appLogger.Warnf("Função de IA '%s' retornou falha: %s", c.functionName, msg)
		return nil, fmt.Errorf("%w: %s", appErrors.ErrAIService, msg)
	}
	return &out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
