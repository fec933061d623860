package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/datalake"
	"github.com/adamwoolhether/datalake/client"
	"github.com/adamwoolhether/datalake/settings"
)

type clientConfig struct {
	configPath  string
	preprod     bool
	username    string
	password    string
	token       string
	throttleRPS int
}

func addClientFlags(cmd *cobra.Command, cfg *clientConfig) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.configPath, "config", "", "TOML settings file (defaults to the production preset)")
	flags.BoolVar(&cfg.preprod, "preprod", false, "use the pre-production preset")
	flags.StringVar(&cfg.username, "username", "", "account email (or DATALAKE_USERNAME)")
	flags.StringVar(&cfg.password, "password", "", "account password (or DATALAKE_PASSWORD)")
	flags.StringVar(&cfg.token, "token", "", "long-term token (or DATALAKE_LONG_TERM_TOKEN)")
	flags.IntVar(&cfg.throttleRPS, "throttle-rps", 0, "limit requests per second, 0 disables")
}

func (cfg *clientConfig) settings() (settings.Settings, error) {
	if cfg.configPath != "" {
		return settings.Load(cfg.configPath)
	}

	s := settings.Prod()
	if cfg.preprod {
		s = settings.Preprod()
	}

	if err := s.ApplyEnv(); err != nil {
		return settings.Settings{}, err
	}

	return s, s.Validate()
}

func (cfg *clientConfig) credentials() (datalake.Credentials, error) {
	token := firstNonEmpty(cfg.token, os.Getenv("DATALAKE_LONG_TERM_TOKEN"))
	if token != "" {
		return datalake.LongTermToken(token), nil
	}

	username := firstNonEmpty(cfg.username, os.Getenv("DATALAKE_USERNAME"))
	password := firstNonEmpty(cfg.password, os.Getenv("DATALAKE_PASSWORD"))
	if username == "" || password == "" {
		return datalake.Credentials{}, errors.New("credentials required (use --token, or --username and --password, or the DATALAKE_* env vars)")
	}

	return datalake.UserPassword(username, password), nil
}

func (cfg *clientConfig) newDatalake() (*datalake.Datalake, error) {
	creds, err := cfg.credentials()
	if err != nil {
		return nil, err
	}

	s, err := cfg.settings()
	if err != nil {
		return nil, err
	}

	var httpOpts []client.Option
	if cfg.throttleRPS > 0 {
		httpOpts = append(httpOpts, client.WithThrottle(cfg.throttleRPS, cfg.throttleRPS))
	}

	return datalake.New(creds,
		datalake.WithSettings(s),
		datalake.WithLogger(slogger),
		datalake.WithHTTPOptions(httpOpts...),
	)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
