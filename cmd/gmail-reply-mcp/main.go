// Gmail reply MCP server lets MCP clients read Gmail threads and reply to them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-reply-mcp/internal/auth"
	"github.com/hal9000y/gmail-reply-mcp/internal/format"
	"github.com/hal9000y/gmail-reply-mcp/internal/gservice"
	"github.com/hal9000y/gmail-reply-mcp/internal/tool"
)

type serverConfig struct {
	httpAddr   string
	tokenStore string
	tokenFile  string
	keyringDir string
	oauthURL   string
	envFile    string
	stdio      bool
	logFile    string
}

func main() {
	cfg := parseFlags()

	closeLog, err := setupLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = run(cfg)
	if err != nil {
		log.Println("gmail-reply-mcp failed:", err)
	}
	closeLog()

	if err != nil {
		os.Exit(1)
	}
}

func parseFlags() serverConfig {
	var cfg serverConfig

	flag.StringVar(&cfg.httpAddr, "http-addr", "localhost:0", "HTTP server listen addr")
	flag.StringVar(&cfg.tokenStore, "token-store", "file", "Where to keep the oauth token: file or keyring")
	flag.StringVar(&cfg.tokenFile, "oauth-token-file", "./data/gmail-reply-mcp-token.json", "Token file for -token-store=file, empty to keep the token in memory")
	flag.StringVar(&cfg.keyringDir, "keyring-dir", "./data/keyring", "Encrypted file fallback for -token-store=keyring, unlocked by KEYRING_FILE_PASSWORD or a terminal prompt")
	flag.StringVar(&cfg.oauthURL, "oauth-url", "", "OAuth redirect URL, defaults to http://<http-addr>/oauth")
	flag.StringVar(&cfg.envFile, "env-file", "", "Path to env file")
	flag.BoolVar(&cfg.stdio, "stdio", false, "Enable stdio transport for MCP (disables stdout logging)")
	flag.StringVar(&cfg.logFile, "log-file", "", "Path to log file, overrides stdout/discard logging")

	flag.Parse()

	return cfg
}

func run(cfg serverConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	ln, err := net.Listen("tcp", cfg.httpAddr)
	if err != nil {
		return fmt.Errorf("net.Listen failed: %w", err)
	}

	oauthCfg, err := newOAuthConfig(ln.Addr().String(), cfg)
	if err != nil {
		return fmt.Errorf("newOAuthConfig failed: %w", err)
	}

	store, err := newTokenStore(cfg)
	if err != nil {
		return fmt.Errorf("newTokenStore failed: %w", err)
	}

	tok, err := auth.NewToken(oauthCfg, store)
	if err != nil {
		return fmt.Errorf("auth.NewToken failed: %w", err)
	}
	defer func() {
		log.Println("Persisting token if exists")
		if err := tok.Persist(); err != nil {
			log.Println(fmt.Errorf("tok.Persist failed: %w", err))
		}
	}()

	mcpSrv := tool.NewServer(gservice.NewGmail(oauthCfg, tok), format.Composer{})

	mux := http.NewServeMux()
	mux.Handle("/oauth", auth.NewHTTPHandler(tok))
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server { return mcpSrv }, nil))

	if _, err := tok.OAuthToken(); errors.Is(err, auth.ErrTokenNotSet) {
		openBrowser(oauthCfg.RedirectURL)
	}

	stopHTTP, errHTTPCh := serveHTTP(&http.Server{Handler: mux}, ln)
	defer stopHTTP()

	var errStdioCh <-chan error
	if cfg.stdio {
		var stopStdio func()
		stopStdio, errStdioCh = serveStdio(mcpSrv)
		defer stopStdio()
	}

	select {
	case err := <-errHTTPCh:
		return err
	case err := <-errStdioCh:
		return err
	case <-ctx.Done():
		log.Println("Shutdown signal received")
		return nil
	}
}

func serveStdio(srv *mcp.Server) (func(), <-chan error) {
	errCh := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(errCh)
		log.Println("Starting stdio transport")

		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			errCh <- fmt.Errorf("srv.Run failed: %w", err)
		}
	}()

	return func() {
		cancel()

		<-errCh
		log.Println("Stdio transport stopped")
	}, errCh
}

func serveHTTP(srv *http.Server, ln net.Listener) (func(), <-chan error) {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)

		log.Println("Starting http server on", ln.Addr().String())

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("srv.Serve failed: %w", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Println(fmt.Errorf("srv.Shutdown failed: %w", err))
		}

		<-errCh
		log.Println("HTTP server stopped")
	}, errCh
}

func newOAuthConfig(lnAddr string, cfg serverConfig) (*oauth2.Config, error) {
	if cfg.envFile != "" {
		if err := godotenv.Load(cfg.envFile); err != nil {
			return nil, fmt.Errorf("godotenv.Load failed: %w", err)
		}
	}

	clientID := os.Getenv("OAUTH_GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("env variables OAUTH_GOOGLE_CLIENT_ID and OAUTH_GOOGLE_CLIENT_SECRET must be set")
	}

	redirectURL := fmt.Sprintf("http://%s/oauth", lnAddr)
	if cfg.oauthURL != "" {
		redirectURL = cfg.oauthURL
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{gmail.GmailReadonlyScope, gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}, nil
}

func newTokenStore(cfg serverConfig) (auth.TokenStore, error) {
	switch cfg.tokenStore {
	case "file":
		if cfg.tokenFile == "" {
			return nil, nil
		}
		return auth.FileStore{Path: cfg.tokenFile}, nil
	case "keyring":
		// stdin carries the MCP stream in stdio mode
		password := auth.FilePassword(os.Getenv("KEYRING_FILE_PASSWORD"), !cfg.stdio)
		store, err := auth.OpenKeyringStore(cfg.keyringDir, password)
		if err != nil {
			return nil, fmt.Errorf("auth.OpenKeyringStore failed: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown -token-store %q, expected file or keyring", cfg.tokenStore)
	}
}

func setupLogger(cfg serverConfig) (func(), error) {
	if cfg.logFile != "" {
		f, err := os.OpenFile(cfg.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(f)

		return func() {
			if err := f.Close(); err != nil {
				fmt.Fprintln(os.Stderr, fmt.Errorf("f.Close failed: %w", err))
			}
		}, nil
	}

	// stdout carries the MCP stream in stdio mode
	if cfg.stdio {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stdout)
	}

	return func() {}, nil
}

func openBrowser(url string) {
	url = fmt.Sprintf("%s?redirect=1", url)
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		log.Printf("Could not open browser automatically: %v; please copy and open link in the browser: %s\n", err, url)
	}
}
