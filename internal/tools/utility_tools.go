package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"sjsage522/scoutmcp/internal/browser"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

const defaultWaitTimeoutMS = 5000

var waitStates = map[string]bool{
	browser.StateVisible:  true,
	browser.StateAttached: true,
	browser.StateDetached: true,
	browser.StateHidden:   true,
}

// ScreenshotResult is returned by take_screenshot alongside the PNG image
type ScreenshotResult struct {
	Success   bool      `json:"success"`
	Filename  string    `json:"filename"`
	FullPage  bool      `json:"full_page"`
	PageURL   string    `json:"page_url"`
	PageTitle string    `json:"page_title"`
	SizeBytes int       `json:"size_bytes"`
	Timestamp time.Time `json:"timestamp"`
	png       []byte
}

// WaitResult is returned by wait_for_element
type WaitResult struct {
	Success             bool      `json:"success"`
	Selector            string    `json:"selector"`
	State               string    `json:"state"`
	WaitDurationSeconds float64   `json:"wait_duration_seconds"`
	TimeoutMS           int       `json:"timeout_ms"`
	Timestamp           time.Time `json:"timestamp"`
}

func (s *Server) registerUtilityTools() {
	s.mcp.AddTool(mcp.NewTool("take_screenshot",
		mcp.WithDescription("Toma una captura de pantalla de la página actual para depuración."),
		mcp.WithString("filename", mcp.Description("Nombre del archivo (opcional, se fuerza extensión .png)")),
		mcp.WithBoolean("full_page", mcp.DefaultBool(false), mcp.Description("Si capturar la página completa")),
	), s.withImage(s.capture("take_screenshot", s.takeScreenshot)))

	s.mcp.AddTool(mcp.NewTool("wait_for_element",
		mcp.WithDescription("Espera a que un elemento alcance un estado."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Selector CSS del elemento")),
		mcp.WithNumber("timeout", mcp.DefaultNumber(defaultWaitTimeoutMS), mcp.Description("Tiempo máximo de espera en milisegundos")),
		mcp.WithString("state", mcp.DefaultString(browser.StateVisible),
			mcp.Enum(browser.StateVisible, browser.StateAttached, browser.StateDetached, browser.StateHidden),
			mcp.Description("Estado esperado del elemento")),
	), s.capture("wait_for_element", s.waitForElement))
}

// screenshotName returns a safe .png file name, defaulting to a timestamped one
func (s *Server) screenshotName(requested string) string {
	name := filepath.Base(strings.TrimSpace(requested))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "ml_screenshot_" + s.now().Format("20060102_150405") + ".png"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".png") {
		name += ".png"
	}
	return name
}

func (s *Server) takeScreenshot(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	const tool = "take_screenshot"
	if !s.browser.HasPage() {
		return nil, scouterrors.NewBrowser(tool, "No hay ninguna página cargada", scouterrors.ErrNoPage)
	}
	if err := os.MkdirAll(s.screenshotDir, 0o755); err != nil {
		return nil, scouterrors.NewBrowser(tool, "no se pudo crear el directorio de capturas", err)
	}

	name := s.screenshotName(req.GetString("filename", ""))
	fullPage := req.GetBool("full_page", false)
	png, err := s.browser.Screenshot(ctx, filepath.Join(s.screenshotDir, name), fullPage)
	if err != nil {
		return nil, scouterrors.NewBrowser(tool, "Error tomando captura de pantalla", err)
	}
	page, err := s.browser.PageInfo(ctx)
	if err != nil {
		return nil, err
	}
	return &ScreenshotResult{
		Success:   true,
		Filename:  name,
		FullPage:  fullPage,
		PageURL:   page.URL,
		PageTitle: page.Title,
		SizeBytes: len(png),
		Timestamp: s.now(),
		png:       png,
	}, nil
}

// withImage appends the last screenshot as image content to successful results
func (s *Server) withImage(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := next(ctx, req)
		if err != nil || res == nil || res.IsError {
			return res, err
		}
		shot, ok := res.StructuredContent.(*ScreenshotResult)
		if ok && len(shot.png) > 0 {
			res.Content = append(res.Content, mcp.NewImageContent(base64.StdEncoding.EncodeToString(shot.png), "image/png"))
		}
		return res, nil
	}
}

func (s *Server) waitForElement(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	const tool = "wait_for_element"
	selector, err := req.RequireString("selector")
	if err != nil {
		return nil, scouterrors.NewSelector(tool, err.Error(), nil)
	}
	state := req.GetString("state", browser.StateVisible)
	if !waitStates[state] {
		return nil, scouterrors.NewSelector(tool,
			fmt.Sprintf("estado inválido: %s (use visible, attached, detached o hidden)", state), nil)
	}
	if !s.browser.HasPage() {
		return nil, scouterrors.NewSelector(tool, "No hay ninguna página cargada", scouterrors.ErrNoPage)
	}
	timeoutMS := req.GetInt("timeout", defaultWaitTimeoutMS)

	start := time.Now()
	if err := s.browser.WaitFor(ctx, selector, state, time.Duration(timeoutMS)*time.Millisecond); err != nil {
		return nil, scouterrors.NewSelector(tool,
			fmt.Sprintf("Elemento %s no alcanzó el estado %s", selector, state), err)
	}
	return WaitResult{
		Success:             true,
		Selector:            selector,
		State:               state,
		WaitDurationSeconds: time.Since(start).Seconds(),
		TimeoutMS:           timeoutMS,
		Timestamp:           s.now(),
	}, nil
}
