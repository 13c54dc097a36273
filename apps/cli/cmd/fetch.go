package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/abdul-hamid-achik/hitreq/packages/jsonx"
	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"
)

type fetchOptions struct {
	requestFlags
	include  bool
	output   string
	query    string
	schema   string
	fail     bool
	progress bool
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Send one request and print the response",
		Long: `Send one request and print the response body.

Examples:
  hitreq fetch https://api.example.com/users
  hitreq fetch https://api.example.com/users -i --transport fetch
  hitreq fetch https://api.example.com/users -X POST -d '{"name":"ada"}'
  hitreq fetch https://api.example.com/upload -F avatar=@me.png -F name=ada
  hitreq fetch https://api.example.com/users/1 --query name
  hitreq fetch https://api.example.com/users --schema users.schema.json
  hitreq fetch '{{baseUrl}}/users' --env-file .env -H 'Authorization: Bearer {{$TOKEN}}'`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, root, opts, args[0])
		},
	}

	opts.register(cmd.Flags())
	cmd.Flags().BoolVarP(&opts.include, "include", "i", false, "Print the status line and response headers")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the body to a file instead of stdout")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "Print only the value at this JSON path")
	cmd.Flags().StringVar(&opts.schema, "schema", "", "Validate the JSON body against a JSON Schema file")
	cmd.Flags().BoolVarP(&opts.fail, "fail", "f", false, "Exit non-zero when the status is not 2xx")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Draw a download progress bar on stderr")
	return cmd
}

func runFetch(cmd *cobra.Command, root *rootOptions, opts *fetchOptions, url string) error {
	s, err := newSession(root, &opts.requestFlags, cmd.Flags())
	if err != nil {
		return err
	}

	token, stop := interruptToken(cmd.ErrOrStderr())
	defer stop()

	o, err := s.options(&opts.requestFlags, url, token)
	if err != nil {
		return err
	}
	req, err := http.NewRequestFromOptions(o)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	ctx := cmd.Context()
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Dispose()

	if _, err := resp.OnHeaders(func(h *http.Headers) {
		s.logger.WithField("count", h.Len()).Debug("headers received")
	}); err != nil {
		return err
	}
	bar := &downloadBar{w: cmd.ErrOrStderr()}
	showBar := wantProgress(opts.progress, opts.output)
	if _, err := resp.OnProgress(func(p http.ProgressEvent) {
		s.logger.WithFields(log.Fields{"loaded": p.Loaded, "total": p.Total}).Debug("progress")
		if showBar {
			bar.update(p)
		}
	}); err != nil {
		return err
	}
	if resp.Redirected {
		s.logger.WithField("url", resp.URL).Debug("redirected")
	}

	out := cmd.OutOrStdout()
	if opts.include {
		printStatus(out, resp)
	}

	body, err := resp.Bytes(ctx)
	bar.finish()
	if err != nil {
		return err
	}
	data := body.UnwrapOr(nil)

	if opts.schema != "" {
		if err := validateSchema(opts.schema, data); err != nil {
			return withExitCode(ExitFailure, err)
		}
		s.logger.WithField("schema", opts.schema).Debug("body matches schema")
	}
	if opts.query != "" {
		value, ok := jsonx.Query(data, opts.query)
		if !ok {
			return withExitCode(ExitFailure, fmt.Errorf("query %q matched nothing", opts.query))
		}
		data = []byte(value + "\n")
	}

	if err := writeBody(out, opts.output, data); err != nil {
		return err
	}

	if opts.fail && !resp.OK() {
		return withExitCode(ExitFailure, fmt.Errorf("server returned %d %s", resp.Status, resp.StatusText))
	}
	return nil
}

func printStatus(w io.Writer, resp *http.Response) {
	statusColor := color.New(color.FgGreen, color.Bold)
	switch {
	case resp.Status >= 400:
		statusColor = color.New(color.FgRed, color.Bold)
	case resp.Status >= 300:
		statusColor = color.New(color.FgYellow, color.Bold)
	}
	statusColor.Fprintf(w, "%d %s", resp.Status, resp.StatusText)
	fmt.Fprintf(w, "  [%s]\n", resp.Type())
	for _, kv := range resp.RawHeaders() {
		fmt.Fprintf(w, "%s: %s\n", kv[0], kv[1])
	}
	fmt.Fprintln(w)
}

func writeBody(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write body: %w", err)
	}
	return nil
}

func validateSchema(path string, data []byte) error {
	schema, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	if !jsonx.Valid(data) {
		return fmt.Errorf("response body is not JSON")
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(errs, "; "))
}
