package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// List of configuration environment variables, each overriding the matching
// config file setting
const (
	envListen                = "PROCONNECT_LISTEN"
	envMount                 = "PROCONNECT_MOUNT"
	envClientID              = "PROCONNECT_CLIENT_ID"
	envClientSecret          = "PROCONNECT_CLIENT_SECRET"
	envDomain                = "PROCONNECT_DOMAIN"
	envRedirectURI           = "PROCONNECT_REDIRECT_URI"
	envPostLogoutRedirectURI = "PROCONNECT_POST_LOGOUT_REDIRECT_URI"
	envScope                 = "PROCONNECT_SCOPE"
	envVerifySignature       = "PROCONNECT_VERIFY_SIGNATURE"
	envDiscoveryTTL          = "PROCONNECT_DISCOVERY_TTL"
)

type webappConfig struct {
	Listen                string        `yaml:"listen" validate:"required"`
	Mount                 string        `yaml:"mount" validate:"required,startswith=/"`
	ClientID              string        `yaml:"client_id" validate:"required"`
	ClientSecret          string        `yaml:"client_secret" validate:"required"`
	ProconnectDomain      string        `yaml:"proconnect_domain" validate:"required,url"`
	RedirectURI           string        `yaml:"redirect_uri" validate:"required,url"`
	PostLogoutRedirectURI string        `yaml:"post_logout_redirect_uri" validate:"omitempty,url"`
	Scope                 string        `yaml:"scope"`
	VerifySignature       bool          `yaml:"verify_signature"`
	DiscoveryTTL          time.Duration `yaml:"discovery_ttl" validate:"gt=0"`
}

func configDefaults() webappConfig {
	return webappConfig{
		Listen:          "localhost:3000",
		Mount:           "/auth/proconnect",
		VerifySignature: true,
		DiscoveryTTL:    10 * time.Minute,
	}
}

// loadEnv loads the .env files that exist, without overriding variables that
// are already set.
func loadEnv(files ...string) error {
	for _, file := range files {
		if strings.HasPrefix(file, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			file = strings.Replace(file, "~", home, 1)
		}
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load env file %s: %w", file, err)
		}
	}
	return nil
}

// loadConfig reads the optional YAML file at path, then applies the
// environment overrides and checks the required settings.
func loadConfig(path string) (*webappConfig, error) {
	const op = "loadConfig"
	cfg := configDefaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: read config file: %w", op, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: unmarshal config file: %w", op, err)
		}
	}

	var result *multierror.Error
	for env, dst := range map[string]*string{
		envListen:                &cfg.Listen,
		envMount:                 &cfg.Mount,
		envClientID:              &cfg.ClientID,
		envClientSecret:          &cfg.ClientSecret,
		envDomain:                &cfg.ProconnectDomain,
		envRedirectURI:           &cfg.RedirectURI,
		envPostLogoutRedirectURI: &cfg.PostLogoutRedirectURI,
		envScope:                 &cfg.Scope,
	} {
		if v, ok := os.LookupEnv(env); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv(envVerifySignature); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s is not a boolean: %w", envVerifySignature, err))
		}
		cfg.VerifySignature = b
	}
	if v, ok := os.LookupEnv(envDiscoveryTTL); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s is not a duration: %w", envDiscoveryTTL, err))
		}
		cfg.DiscoveryTTL = d
	}

	// validate config
	if err := validator.New().Struct(cfg); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}
