package server

import (
	"context"
	"html/template"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rhythmiq/internal/session"
)

// CallbackResult is delivered once the redirect has settled.
type CallbackResult struct {
	Destination session.Destination
	Err         error
}

// CallbackHandlerOpts configures a [CallbackHandler].
type CallbackHandlerOpts struct {
	Path          string // defaults to /callback
	ExpectedState string
	Logger        *log.Logger
}

// CallbackHandler is the HTTP adapter of [session.CallbackController].
//
// Every request to the callback path is fed to the controller; browser reloads and duplicate
// requests are absorbed by its guard. The single navigation is delivered on [CallbackHandler.Result].
type CallbackHandler struct {
	path       string
	controller *session.CallbackController
	resultChan chan CallbackResult
	logger     *log.Logger
}

// NewCallbackHandler creates a handler that completes authorization through auth.
func NewCallbackHandler(auth session.AuthHandler, opts CallbackHandlerOpts) *CallbackHandler {
	if opts.Path == "" {
		opts.Path = "/callback"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	h := &CallbackHandler{
		path:       opts.Path,
		resultChan: make(chan CallbackResult, 1),
		logger:     opts.Logger,
	}
	h.controller = session.NewCallbackController(auth, h.send, session.CallbackOpts{
		ExpectedState: opts.ExpectedState,
		Logger:        opts.Logger,
	})
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{http.MethodGet + " " + h.path}
}

// ServeHTTP runs the controller and renders the outcome for the browser.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The exchange must finish even if the browser goes away mid-request.
	h.controller.Handle(context.WithoutCancel(r.Context()), r.URL.Query())

	page := pageData{Title: "Authorization in progress", Message: "You can close this window and return to the terminal.", Color: "#b3b3b3"}
	status := http.StatusAccepted

	switch h.controller.State() {
	case session.Succeeded:
		page = pageData{Title: "Authorization Successful", Message: "You can close this window and return to the terminal.", Color: "#1DB954"}
		status = http.StatusOK
	case session.Failed:
		page = pageData{Title: "Authorization Failed", Message: session.DisplayError(h.controller.Err()), Color: "#e22134"}
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := resultPage.Execute(w, page); err != nil {
		h.logger.Error("failed to render callback page", "error", err)
	}
}

// Abandon stops the controller from acting on any pending or future redirect.
func (h *CallbackHandler) Abandon() {
	h.controller.Abandon()
}

// Result returns the channel receiving the single navigation.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

func (h *CallbackHandler) send(dest session.Destination) {
	h.resultChan <- CallbackResult{Destination: dest, Err: h.controller.Err()}
	close(h.resultChan)
}

type pageData struct {
	Title   string
	Message string
	Color   string
}

var resultPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #121212; }
        .container { text-align: center; background: #181818; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.4); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #b3b3b3; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))
