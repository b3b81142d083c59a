package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/esl-callbacks/internal/esl"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wiretap",
		Short:         "Capture and sanitize raw event socket traffic for test fixtures",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCaptureCmd(), newSanitizeCmd())
	return root
}

func newCaptureCmd() *cobra.Command {
	var (
		host     string
		port     int
		password string
		format   string
		outDir   string
	)
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Stream every event to a timestamped file until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			addr := fmt.Sprintf("%s:%d", host, port)
			return capture(ctx, addr, password, format, outDir, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Event socket host")
	cmd.Flags().IntVar(&port, "port", 8021, "Event socket port")
	cmd.Flags().StringVar(&password, "password", "", "Event socket password")
	cmd.Flags().StringVar(&format, "format", "plain", "Event format to request (plain or json)")
	cmd.Flags().StringVar(&outDir, "outdir", "testdata/captures", "Output directory for captures")
	return cmd
}

func newSanitizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize FILE",
		Short: "Redact a capture file in place (keeps .bak)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sanitizeFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sanitized:", args[0])
			return nil
		},
	}
}

func capture(ctx context.Context, addr, password, format, outDir string, out io.Writer) error {
	fmt.Fprintf(out, "connecting to %s...\n", addr)
	client, err := esl.Dial(ctx, addr, password)
	if err != nil {
		return err
	}
	defer client.Close()

	go func() {
		<-ctx.Done()
		client.Close()
	}()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	filename := filepath.Join(outDir, time.Now().Format("20060102-150405")+".esl")
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer f.Close()
	fmt.Fprintf(out, "writing to %s\n", filename)

	if err := client.Events(ctx, format, "ALL"); err != nil {
		return err
	}

	fmt.Fprintln(out, "streaming events (ctrl+c to stop)...")
	for {
		frame, err := client.NextFrame()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if _, err := frame.WriteTo(f); err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
		if frame.ContentType() == esl.ContentTypeDisconnect {
			return nil
		}
	}
}

var (
	ipPattern       = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	phonePattern    = regexp.MustCompile(`(%2B|\+)?\d{10,11}`)
	passwordPattern = regexp.MustCompile(`(?i)^((?:variable_)?\w*password\w*:\s*).+`)
	numberHeader    = regexp.MustCompile(`(?i)^[\w-]*(Number|ANI|Diversion)[\w-]*:`)
)

// sanitizeFile redacts passwords, addresses and phone numbers. Content-Length
// is rewritten to match each redacted body.
func sanitizeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path+".bak", data, 0o644); err != nil {
		return fmt.Errorf("creating backup: %w", err)
	}

	p := esl.NewParser(strings.NewReader(string(data)))
	var out strings.Builder
	for {
		frame, err := p.NextFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}

		body := redact(string(frame.Body))
		frame.Headers.Each(func(key, value string) {
			if key == esl.HeaderContentLength {
				value = strconv.Itoa(len(body))
			}
			out.WriteString(key + ": " + value + "\n")
		})
		out.WriteString("\n")
		out.WriteString(body)
	}

	return os.WriteFile(path, []byte(out.String()), 0o644)
}

func redact(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		line = passwordPattern.ReplaceAllString(line, "${1}REDACTED")
		line = ipPattern.ReplaceAllStringFunc(line, func(ip string) string {
			if ip == "127.0.0.1" {
				return ip
			}
			return "10.0.0.1"
		})
		if numberHeader.MatchString(line) {
			key, value, _ := strings.Cut(line, ":")
			line = key + ":" + phonePattern.ReplaceAllString(value, "15550001234")
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
