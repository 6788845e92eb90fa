package tools

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"sjsage522/scoutmcp/internal/browser"
	"sjsage522/scoutmcp/internal/extract"
	"sjsage522/scoutmcp/internal/learning"
	"sjsage522/scoutmcp/internal/prompt"
	"sjsage522/scoutmcp/logger"
	"sjsage522/scoutmcp/services/metrics"
)

const (
	ServerName    = "MercadoLibreMX-Scout"
	ServerVersion = "1.0.0"
)

const instructions = `Servidor MCP especializado para MercadoLibre México con sistema de aprendizaje de errores.

Capacidades:
- Navegación restringida a mercadolibre.com.mx
- Búsqueda y extracción de productos con estadísticas de precios
- Descubrimiento y prueba de selectores CSS
- Extracción de HTML y texto para análisis
- Captura, estadísticas y búsqueda de errores comunes

Recomendación: usa get_prevention_advice antes de ejecutar herramientas críticas.
Todas las respuestas son objetos JSON planos.`

// Browser is the page session the tools drive
type Browser interface {
	Navigate(ctx context.Context, rawURL string) (string, error)
	GoHome(ctx context.Context) (string, error)
	Search(ctx context.Context, query string) (string, error)
	Paginate(ctx context.Context, direction string) (string, error)
	PageInfo(ctx context.Context) (browser.PageInfo, error)
	Snapshot(ctx context.Context) (*goquery.Document, string, error)
	Content(ctx context.Context) (string, error)
	Visibility(ctx context.Context, selector string, limit int) ([]bool, error)
	WaitFor(ctx context.Context, selector, state string, timeout time.Duration) error
	Screenshot(ctx context.Context, path string, fullPage bool) ([]byte, error)
	HasPage() bool
}

// Server exposes the scouting tools over MCP
type Server struct {
	mcp       *server.MCPServer
	browser   Browser
	learning  *learning.Manager
	extractor *extract.Extractor
	metrics   *metrics.Metrics

	screenshotDir string
	now           func() time.Time
	log           *logger.Logger
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records tool calls and extracted products
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithScreenshotDir sets where screenshots are written
func WithScreenshotDir(dir string) Option {
	return func(s *Server) { s.screenshotDir = dir }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer registers every tool and the agent prompt
func NewServer(b Browser, lm *learning.Manager, ex *extract.Extractor, opts ...Option) *Server {
	s := &Server{
		browser:       b,
		learning:      lm,
		extractor:     ex,
		screenshotDir: "screenshots",
		now:           time.Now,
		log:           logger.ForTool("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	s.registerLearningTools()
	s.registerNavigationTools()
	s.registerExtractionTools()
	s.registerSelectorTools()
	s.registerProductTools()
	s.registerUtilityTools()
	s.registerFlowTools()
	s.registerPrompt()
	return s
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP over stdin and stdout until ctx is done
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info().Msg("Serving MCP over stdio")
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeHTTP serves streamable HTTP MCP on addr (path /mcp) until ctx is done
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.mcp)
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Serving MCP over streamable HTTP")
		errCh <- httpServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerPrompt() {
	p := mcp.NewPrompt(prompt.Name,
		mcp.WithPromptDescription("Prompt de sistema para un agente que usa este servidor"),
		mcp.WithArgument("query", mcp.ArgumentDescription("Solicitud del usuario (opcional)")),
	)
	s.mcp.AddPrompt(p, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		text := prompt.Build(req.Params.Arguments["query"])
		return mcp.NewGetPromptResult(
			"Agente de búsqueda para MercadoLibre México",
			[]mcp.PromptMessage{mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text))},
		), nil
	})
}
