// Command sheets-auth runs the OAuth consent flow once and stores a
// read-only Sheets token for the sheets backend (GOOGLE_OAUTH_TOKEN_FILE).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/oauth2"

	"finreport/internal/cli"
	"finreport/internal/log"
	gsheet "finreport/internal/sheets/google"
)

const authTimeout = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)

	clientJSON, err := readClientJSON()
	if err != nil {
		logger.Error("OAuth client credentials missing", log.FieldError, err)
		os.Exit(1)
	}
	cfg, err := gsheet.OAuthConfig(clientJSON)
	if err != nil {
		logger.Error("Invalid OAuth client", log.FieldError, err)
		os.Exit(1)
	}

	// The redirect URI must be registered on the OAuth client.
	redirectPort := getenv("OAUTH_REDIRECT_PORT", "8085")
	cfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: ":" + redirectPort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			errCh <- fmt.Errorf("consent denied: %s", errStr)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		codeCh <- r.URL.Query().Get("code")
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize read-only Sheets access:\n%s\n", cfg.AuthCodeURL("finreport", oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		logger.Error("Authorization failed", log.FieldError, err)
		os.Exit(1)
	case <-time.After(authTimeout):
		logger.Error("Authorization timed out")
		os.Exit(1)
	case <-ctx.Done():
		logger.Error("Interrupted")
		os.Exit(1)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		logger.Error("Token exchange failed", log.FieldError, err)
		os.Exit(1)
	}

	outFile := getenv("GOOGLE_OAUTH_TOKEN_FILE", "token.json")
	if err := writeToken(outFile, tok); err != nil {
		logger.Error("Failed to save token", log.FieldError, err, "path", outFile)
		os.Exit(1)
	}
	fmt.Printf("Saved token to %s\n", outFile)
}

func readClientJSON() ([]byte, error) {
	if v := os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"); v != "" {
		return []byte(v), nil
	}
	if path := os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"); path != "" {
		return os.ReadFile(path)
	}
	return nil, fmt.Errorf("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
}

func writeToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
