package http

import (
	"html/template"
	"log/slog"
	"net/http"
)

// The callback is opened in the user's phone browser after the
// provider redirect, so it renders plain HTML rather than JSON.

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Device Linked</title>
  <style>
    body { font-family: -apple-system, sans-serif; text-align: center; padding: 3em 1em; background: #121212; color: #fff; }
    .mark { font-size: 4em; }
    h1 { color: #1DB954; }
    p { color: #b3b3b3; }
  </style>
</head>
<body>
  <div class="mark">&#10003;</div>
  <h1>Device Linked</h1>
  <p>Device <strong>{{.DeviceID}}</strong> is now connected to your account.</p>
  <p>You can close this window and start talking to your device.</p>
</body>
</html>`))

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Linking Failed</title>
  <style>
    body { font-family: -apple-system, sans-serif; text-align: center; padding: 3em 1em; background: #121212; color: #fff; }
    .mark { font-size: 4em; }
    h1 { color: #e74c3c; }
    p { color: #b3b3b3; }
  </style>
</head>
<body>
  <div class="mark">&#10007;</div>
  <h1>Linking Failed</h1>
  <p>{{.Message}}</p>
  <p>Ask your device for a new QR code and try again.</p>
</body>
</html>`))

func renderSuccessPage(w http.ResponseWriter, deviceID string, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := successPage.Execute(w, struct{ DeviceID string }{deviceID}); err != nil {
		logger.Error("failed to render success page", "error", err)
	}
}

func renderErrorPage(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := errorPage.Execute(w, struct{ Message string }{message}); err != nil {
		logger.Error("failed to render error page", "error", err)
	}
}
