package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/config"
	"github.com/abdul-hamid-achik/hitreq/packages/core/env"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/abdul-hamid-achik/hitreq/packages/jsonx"
	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/spf13/pflag"
)

// requestFlags are the flags that describe the request and the transport
// settings, shared by fetch and poll.
type requestFlags struct {
	method       string
	headers      []string
	data         string
	form         []string
	user         string
	vars         []string
	timeout      time.Duration
	delay        time.Duration
	maxRedirects int
	insecure     bool
	proxy        string
	transport    string
	credentials  string
	envFile      string
	rate         float64
	burst        int
}

func (f *requestFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.method, "request", "X", "", "Request method (default GET, or POST with a body)")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, "Request header \"Name: value\" (repeatable)")
	fs.StringVarP(&f.data, "data", "d", "", "Request body, or @file to read it from a file")
	fs.StringArrayVarP(&f.form, "form", "F", nil, "Multipart field name=value, or name=@file to upload (repeatable)")
	fs.StringVarP(&f.user, "user", "u", "", "Basic auth credentials user:password")
	fs.StringArrayVar(&f.vars, "var", nil, "Template variable name=value for {{name}} placeholders (repeatable)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Request timeout (default from config, 30s)")
	fs.DurationVar(&f.delay, "delay", 0, "Wait this long before sending")
	fs.IntVar(&f.maxRedirects, "max-redirects", config.DefaultMaxRedirects, "Redirect hop budget, 0 returns the first 3xx as is")
	fs.BoolVarP(&f.insecure, "insecure", "k", false, "Disable TLS certificate verification")
	fs.StringVar(&f.proxy, "proxy", "", "Proxy URL for HTTP requests")
	fs.StringVar(&f.transport, "transport", "", "Transport to use: socket or fetch")
	fs.StringVar(&f.credentials, "credentials", "", "Cookie mode for the fetch transport: omit, same-origin or include")
	fs.StringVar(&f.envFile, "env-file", "", "Load variables from a .env file")
	fs.Float64Var(&f.rate, "rate", 0, "Maximum requests per second, 0 for unlimited")
	fs.IntVar(&f.burst, "burst", 0, "Requests allowed to exceed --rate at once")
}

// overlay returns the configuration set explicitly on the command line.
func (f *requestFlags) overlay(fs *pflag.FlagSet) *config.Config {
	o := &config.Config{}
	if fs.Changed("transport") {
		o.Transport = f.transport
	}
	if fs.Changed("timeout") {
		o.Timeout = int(f.timeout.Milliseconds())
	}
	if fs.Changed("delay") {
		o.Delay = int(f.delay.Milliseconds())
	}
	if fs.Changed("max-redirects") {
		o.MaxRedirects = config.IntPtr(f.maxRedirects)
	}
	if f.insecure {
		o.StrictSSL = config.BoolPtr(false)
	}
	if fs.Changed("proxy") {
		o.Proxy = f.proxy
	}
	if fs.Changed("credentials") {
		o.Credentials = f.credentials
	}
	if fs.Changed("env-file") {
		o.EnvFile = f.envFile
	}
	if fs.Changed("rate") {
		o.Rate = f.rate
	}
	if fs.Changed("burst") {
		o.Burst = f.burst
	}
	return o
}

// session is the resolved state of one command: configuration, variables
// and the client built from them.
type session struct {
	cfg      *config.Config
	cfgPath  string
	overlay  *config.Config
	env      env.Source
	expander *env.Expander
	client   *http.Client
	logger   log.Interface
}

func newSession(root *rootOptions, flags *requestFlags, fs *pflag.FlagSet) (*session, error) {
	path := root.configPath
	if path == "" {
		path = config.FindConfigFile(".")
	}
	base := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		base = loaded
	}

	overlay := flags.overlay(fs)
	cfg := base.Merge(overlay)
	if err := cfg.Validate(); err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	if cfg.GetVerbose() {
		log.SetLevel(log.DebugLevel)
	}
	if cfg.GetNoColor() {
		color.NoColor = true
	}

	logger := log.Log
	src := env.System
	vars := make(map[string]string)
	if cfg.EnvFile != "" {
		loaded, err := env.LoadDotEnv(cfg.EnvFile)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		for k, v := range loaded {
			vars[k] = v
		}
		src = env.Overlay(env.System, loaded)
	}
	for _, kv := range flags.vars {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid --var %q, expected name=value", kv))
		}
		vars[name] = value
	}

	var warned sync.Map
	s := &session{
		cfg:     cfg,
		cfgPath: path,
		overlay: overlay,
		env:     src,
		logger:  logger,
		expander: &env.Expander{
			Vars: vars,
			Env:  src,
			Missing: func(name string) {
				if _, seen := warned.LoadOrStore(name, true); !seen {
					logger.Warnf("unresolved variable {{%s}}", name)
				}
			},
		},
	}
	s.client = http.NewClient(cfg.ClientOptions(src, logger)...)
	logger.WithFields(log.Fields{
		"config":    path,
		"transport": string(s.client.Platform()),
	}).Debug("session ready")
	return s, nil
}

// options expands the request flags into request options. Placeholders are
// expanded on every call so {{uuid}} differs between requests.
func (s *session) options(f *requestFlags, url string, token *http.Token) (http.Options, error) {
	o := http.Options{
		URL:             s.expander.Expand(url),
		Method:          f.method,
		Delay:           s.cfg.Delay,
		FollowRedirects: config.IntPtr(s.cfg.GetMaxRedirects()),
		Credentials:     http.CredentialsMode(s.cfg.Credentials),
		Token:           token,
	}

	if len(f.headers) > 0 {
		headers := make([][2]string, 0, len(f.headers))
		for _, h := range f.headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok {
				return o, withExitCode(ExitUsageError, fmt.Errorf("invalid header %q, expected \"Name: value\"", h))
			}
			headers = append(headers, [2]string{strings.TrimSpace(name), s.expander.Expand(strings.TrimSpace(value))})
		}
		o.Headers = headers
	}

	if f.user != "" {
		o.User, o.Password, _ = strings.Cut(s.expander.Expand(f.user), ":")
	}

	payload, err := s.payload(f)
	if err != nil {
		return o, err
	}
	if payload != nil {
		o.Payload = payload
	}
	if o.Method == "" {
		o.Method = "GET"
		if payload != nil {
			o.Method = "POST"
		}
	}
	return o, nil
}

func (s *session) payload(f *requestFlags) (*http.Payload, error) {
	if len(f.form) > 0 {
		if f.data != "" {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("--data and --form cannot be combined"))
		}
		fields := make([]http.MultipartField, 0, len(f.form))
		for _, kv := range f.form {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid form field %q, expected name=value", kv))
			}
			field := http.MultipartField{Name: name}
			if path, isFile := strings.CutPrefix(value, "@"); isFile {
				field.Path = path
			} else {
				field.Value = s.expander.Expand(value)
			}
			fields = append(fields, field)
		}
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		return http.MultipartPayload(fields, wd)
	}

	if f.data == "" {
		return nil, nil
	}
	data := f.data
	if path, isFile := strings.CutPrefix(data, "@"); isFile {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read body: %w", err)
		}
		data = string(raw)
	}
	data = s.expander.Expand(data)

	contentType := ""
	if trimmed := strings.TrimSpace(data); (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && jsonx.Valid([]byte(trimmed)) {
		contentType = "application/json"
	}
	return http.StringPayload(data, contentType), nil
}

// interruptToken returns a token cancelled by SIGINT or SIGTERM, and a func
// that stops listening for them.
func interruptToken(stderr io.Writer) (*http.Token, func()) {
	token := http.NewToken()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(stderr, "\nReceived interrupt, cancelling...")
			token.Cancel()
		case <-done:
		}
	}()
	return token, func() {
		signal.Stop(sigCh)
		close(done)
	}
}
