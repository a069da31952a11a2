// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/proconnect/oidc"
	"github.com/hashicorp/proconnect/oidc/callback"
)

// userKey is where the demo keeps the authenticated identity in the session.
const userKey = "webapp.user"

var homeTmpl = template.Must(template.New("home").Parse(`<!doctype html>
<html><body>
{{if .User}}
<p>Bonjour {{.User.Info.Name}} ({{.User.Info.Email}})</p>
<p><a href="{{.Mount}}/logout">Se déconnecter</a></p>
{{else}}
<p><a href="{{.Mount}}">S'identifier avec ProConnect</a></p>
{{end}}
</body></html>
`))

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	envFile := flag.String("env", ".env", "path to a .env file, ignored when missing")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := hclog.Info
	if *debug {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "webapp",
		Level: level,
	})

	if err := loadEnv(*envFile); err != nil {
		logger.Error("unable to load env file", "error", err)
		os.Exit(1)
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	opts := []oidc.Option{oidc.WithLogger(logger)}
	if cfg.PostLogoutRedirectURI != "" {
		opts = append(opts, oidc.WithPostLogoutRedirectURL(cfg.PostLogoutRedirectURI))
	}
	if cfg.Scope != "" {
		opts = append(opts, oidc.WithScope(cfg.Scope))
	}
	pc, err := oidc.NewConfig(cfg.ProconnectDomain, cfg.ClientID, oidc.ClientSecret(cfg.ClientSecret), cfg.RedirectURI, cfg.VerifySignature, opts...)
	if err != nil {
		logger.Error("invalid provider configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.VerifySignature {
		logger.Warn("userinfo signatures are not verified")
	}

	cache, err := oidc.NewDiscoveryCache(cfg.DiscoveryTTL)
	if err != nil {
		logger.Error("unable to create discovery cache", "error", err)
		os.Exit(1)
	}

	sessions := newCookieSessions(strings.HasPrefix(cfg.RedirectURI, "https://"))
	mw, err := callback.NewMiddleware(pc, cfg.Mount, sessions.session,
		successHandler(sessions, logger), errorHandler(logger), homeHandler(sessions, cfg.Mount),
		oidc.WithDiscoveryCache(cache))
	if err != nil {
		logger.Error("unable to create middleware", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mw,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// handle ctrl-c
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srvCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "mount", cfg.Mount)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvCh <- err
		}
	}()

	select {
	case err := <-srvCh:
		logger.Error("server closed with error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		fmt.Fprintln(os.Stderr, "Interrupted")
	}
}

// successHandler keeps the identity in the browser's session and sends it
// home.
func successHandler(sessions *cookieSessions, logger hclog.Logger) callback.SuccessResponseFunc {
	return func(id *oidc.Identity, w http.ResponseWriter, req *http.Request) {
		store := sessions.lookup(req)
		if store == nil {
			http.Error(w, "session expired", http.StatusBadRequest)
			return
		}
		b, err := json.Marshal(id)
		if err != nil {
			http.Error(w, "unable to store identity", http.StatusInternalServerError)
			return
		}
		if err := store.Set(req.Context(), userKey, string(b)); err != nil {
			http.Error(w, "unable to store identity", http.StatusInternalServerError)
			return
		}
		logger.Info("user signed in", "uid", id.UID)
		http.Redirect(w, req, "/", http.StatusFound)
	}
}

func errorHandler(logger hclog.Logger) callback.ErrorResponseFunc {
	return func(respErr *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		if e != nil {
			logger.Error("authentication failed", "path", req.URL.Path, "error", e)
		}
		callback.DefaultErrorResponse(respErr, e, w, req)
	}
}

// homeHandler serves every non-flow request.
func homeHandler(sessions *cookieSessions, mount string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		data := struct {
			Mount string
			User  *oidc.Identity
		}{Mount: mount}
		if store := sessions.lookup(req); store != nil {
			if raw, _ := store.Get(req.Context(), userKey); raw != "" {
				var id oidc.Identity
				if err := json.Unmarshal([]byte(raw), &id); err == nil {
					data.User = &id
				}
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = homeTmpl.Execute(w, data)
	})
}
