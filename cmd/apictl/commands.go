package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lgc202/apikit/apiclient"
	"github.com/lgc202/apikit/config"
	"github.com/lgc202/apikit/logger"
	"github.com/lgc202/apikit/storage"
	"github.com/lgc202/apikit/ui"
	"github.com/lgc202/apikit/version"
)

type app struct {
	// flags
	configPath string
	baseURL    string
	origin     string
	tokenFile  string
	logLevel   string
	headers    []string
	loading    bool
	quiet      bool

	cfg    config.Config
	log    zerolog.Logger
	store  *storage.File
	ui     *trackingConsole
	client *apiclient.Client
}

// trackingConsole remembers whether a toast was shown, so a failure the user
// has already seen is not printed a second time.
type trackingConsole struct {
	*ui.Console
	toasts atomic.Int32
}

func (c *trackingConsole) Toast(message string) {
	c.toasts.Add(1)
	c.Console.Toast(message)
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "apictl",
		Short:         "Call envelope-style JSON APIs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (yaml, json or toml)")
	pf.StringVar(&a.baseURL, "base-url", "", "API base URL, absolute or a path prefix such as /api")
	pf.StringVar(&a.origin, "origin", "", "origin a path-only base URL is resolved against")
	pf.StringVar(&a.tokenFile, "token-file", "", "credentials file (default: user config dir)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.StringArrayVarP(&a.headers, "header", "H", nil, `extra header "Key: Value" (repeatable)`)
	pf.BoolVar(&a.loading, "loading", false, "show a loading indicator while the call runs")
	pf.BoolVar(&a.quiet, "quiet", false, "do not print error messages meant for the user")

	root.AddCommand(
		a.queryCmd("get", apiclient.Get[json.RawMessage], true),
		a.queryCmd("delete", apiclient.Delete[json.RawMessage], false),
		a.bodyCmd("post", apiclient.Post[json.RawMessage, json.RawMessage]),
		a.bodyCmd("put", apiclient.Put[json.RawMessage, json.RawMessage]),
		a.loginCmd(),
		a.logoutCmd(),
		versionCmd(),
	)
	return root, a
}

// execute runs the command tree and prints any error the client has not
// already shown as a toast.
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if err != nil && (a.ui == nil || a.ui.toasts.Load() == 0) {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

// setup loads configuration and builds the client. Commands that need it call it first.
func (a *app) setup(cmd *cobra.Command) error {
	extra, err := parseHeaders(a.headers)
	if err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath, config.WithOverrides(map[string]any{
		"api.base_url":    a.baseURL,
		"api.origin":      a.origin,
		"auth.token_file": a.tokenFile,
		"log.level":       a.logLevel,
	}))
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: cmd.ErrOrStderr()})

	path := cfg.Auth.TokenFile
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate config dir: %w", err)
		}
		path = filepath.Join(dir, "apikit", "credentials.json")
	}
	if a.store, err = storage.NewFile(path); err != nil {
		return err
	}

	headers := make(http.Header)
	for k, v := range cfg.API.Headers {
		headers.Set(k, v)
	}
	for k, vv := range extra {
		headers[k] = vv
	}

	a.ui = &trackingConsole{Console: ui.NewConsole(cmd.ErrOrStderr())}
	a.client, err = apiclient.New(apiclient.Config{
		BaseURL:         cfg.API.BaseURL,
		Origin:          cfg.API.Origin,
		Timeout:         cfg.API.Timeout,
		Cookies:         cfg.API.Cookies,
		Headers:         headers,
		RequestIDHeader: cfg.API.RequestIDHeader,
		UserAgent:       version.Get().UserAgent("apictl"),
		TokenKey:        cfg.Auth.TokenKey,
		LoginRoute:      cfg.Auth.LoginRoute,
		LoadingTitle:    cfg.UI.LoadingTitle,
	},
		apiclient.WithStorage(a.store),
		apiclient.WithNotifier(a.ui),
		apiclient.WithNavigator(a.ui),
		apiclient.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}
	a.log.Debug().Str("base_url", a.client.HTTP().BaseURL().String()).Str("token_file", a.store.Path()).Msg("client ready")
	return nil
}

func (a *app) callOptions() []apiclient.RequestOption {
	var opts []apiclient.RequestOption
	if a.loading {
		opts = append(opts, apiclient.WithLoading())
	}
	if a.quiet {
		opts = append(opts, apiclient.WithoutErrorToast())
	}
	return opts
}

type queryFunc func(ctx context.Context, c *apiclient.Client, path string, params map[string]any, opts ...apiclient.RequestOption) (json.RawMessage, error)

type bodyFunc func(ctx context.Context, c *apiclient.Client, path string, data json.RawMessage, opts ...apiclient.RequestOption) (json.RawMessage, error)

func (a *app) queryCmd(name string, call queryFunc, repeatable bool) *cobra.Command {
	var (
		query []string
		every time.Duration
	)
	cmd := &cobra.Command{
		Use:   name + " <path>",
		Short: fmt.Sprintf("Send a %s request and print the response data", strings.ToUpper(name)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(query)
			if err != nil {
				return err
			}
			if err := a.setup(cmd); err != nil {
				return err
			}
			once := func(ctx context.Context) error {
				data, err := call(ctx, a.client, args[0], params, a.callOptions()...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), data)
			}
			if every > 0 {
				return a.poll(cmd.Context(), every, once)
			}
			return once(cmd.Context())
		},
	}
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "query parameter key=value (repeatable)")
	if repeatable {
		cmd.Flags().DurationVar(&every, "every", 0, "repeat the call at this interval until interrupted")
	}
	return cmd
}

func (a *app) bodyCmd(name string, call bodyFunc) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   name + " <path>",
		Short: fmt.Sprintf("Send a %s request with a JSON body and print the response data", strings.ToUpper(name)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(data, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := a.setup(cmd); err != nil {
				return err
			}
			out, err := call(cmd.Context(), a.client, args[0], body, a.callOptions()...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON body, @file to read a file, or @- for stdin")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token for later calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("--token is required")
			}
			if err := a.setup(cmd); err != nil {
				return err
			}
			if err := a.store.Set(a.cfg.Auth.TokenKey, token); err != nil {
				return err
			}
			a.log.Info().Str("file", a.store.Path()).Msg("token saved")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			return a.store.Remove(a.cfg.Auth.TokenKey)
		},
	}
}

func versionCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			switch output {
			case "json":
				s, err := info.JSON(true)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), s)
			case "short":
				fmt.Fprintln(cmd.OutOrStdout(), info.String())
			case "text", "":
				fmt.Fprintln(cmd.OutOrStdout(), info.Text())
			default:
				return fmt.Errorf("unknown output format %q (text, json, short)", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json, short)")
	return cmd
}

// poll repeats call every interval until ctx is done. The token file is watched
// meanwhile, so a login from another terminal applies to the next call without
// re-reading the file on every tick.
func (a *app) poll(ctx context.Context, every time.Duration, call func(context.Context) error) error {
	if err := a.store.Watch(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if err := call(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn().Err(err).Msg("call failed, retrying at next tick")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// parseHeaders reads curl-style "Key: Value" pairs.
func parseHeaders(pairs []string) (http.Header, error) {
	h := make(http.Header, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Key: Value\"", p)
		}
		h.Add(k, strings.TrimSpace(v))
	}
	return h, nil
}

// parseParams turns key=value pairs into query params; repeated keys become lists.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid query %q, want key=value", p)
		}
		switch cur := params[k].(type) {
		case nil:
			params[k] = v
		case string:
			params[k] = []string{cur, v}
		case []string:
			params[k] = append(cur, v)
		}
	}
	return params, nil
}

func readBody(data string, stdin io.Reader) (json.RawMessage, error) {
	var b []byte
	switch {
	case data == "":
		return nil, nil
	case data == "@-":
		var err error
		if b, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	case strings.HasPrefix(data, "@"):
		var err error
		if b, err = os.ReadFile(data[1:]); err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
	default:
		b = []byte(data)
	}
	b = bytes.TrimSpace(b)
	if !json.Valid(b) {
		return nil, errors.New("body is not valid JSON")
	}
	return json.RawMessage(b), nil
}

func printJSON(w io.Writer, data json.RawMessage) error {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
