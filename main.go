package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"pdf-visual-translator/internal/logger"
)

var version = "0.1.0"

// Command line flags shared by every command
var appOpts AppOptions

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pdf-visual-translator",
		Short: "PDF 可视化翻译：逐块翻译、人工校对并重建页面",
		Long: `pdf-visual-translator extracts the text blocks of a PDF page, translates
them with a language model, lets a reviewer adjust position, font and color,
and rebuilds the page with the original text blanked out and the translation
inserted.

Without a subcommand the HTTP API is started (same as "serve").`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), "", 0, false)
		},
	}

	root.PersistentFlags().StringVar(&appOpts.ConfigPath, "config", "", "config file (default ./config.json)")
	root.PersistentFlags().StringVar(&appOpts.CredentialsPath, "credentials", "", "LLM credentials file (default llm_credentials.json next to the config)")
	root.PersistentFlags().StringVar(&appOpts.EnvFile, "env", ".env", "dotenv file loaded before the config")

	root.AddCommand(newServeCmd(), newDesktopCmd(), newInfoCmd(), newExtractCmd(), newExportCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
		open bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), host, port, open)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen address (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	cmd.Flags().BoolVar(&open, "open", false, "open the UI in the default browser")
	return cmd
}

func runServe(ctx context.Context, host string, port int, open bool) error {
	app, err := NewApp(appOpts)
	if err != nil {
		return err
	}
	if err := app.initLogger(true); err != nil {
		return err
	}
	defer logger.Close()

	cfg := app.GetConfig()
	if host == "" {
		host = cfg.Host
	}
	if port == 0 {
		port = cfg.Port
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.startup(ctx)
	defer app.shutdown(context.Background())

	if open || cfg.OpenBrowser {
		url := "http://" + addr
		go func() {
			if err := browser.OpenURL(url); err != nil {
				logger.Warn("failed to open browser", logger.String("url", url), logger.Err(err))
			}
		}()
	}

	fmt.Printf("PDF 可视化翻译已启动: http://%s\n", addr)
	return app.server.Start(ctx, addr)
}

func newDesktopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "desktop",
		Short: "Open the UI in a native window",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(appOpts)
			if err != nil {
				return err
			}
			if err := app.initLogger(false); err != nil {
				return err
			}
			defer logger.Close()
			return runDesktop(app)
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <pdf>",
		Short: "Show page count, text layer and saved translations of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(appOpts)
			if err != nil {
				return err
			}
			info, err := app.Info(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), info)
		},
	}
}

func newExtractCmd() *cobra.Command {
	var (
		page      int
		storePath string
	)
	cmd := &cobra.Command{
		Use:   "extract <pdf>",
		Short: "Print the blocks of one page as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(appOpts)
			if err != nil {
				return err
			}
			if err := app.initLogger(false); err != nil {
				return err
			}
			defer logger.Close()

			info, err := app.ExtractPage(args[0], storePath, page)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), info)
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 0, "page index (0-based)")
	cmd.Flags().StringVar(&storePath, "store", "", "translation store (default <stem>_translations.json)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var opts ExportOptions
	cmd := &cobra.Command{
		Use:   "export <pdf>",
		Short: "Rebuild the translated PDF from a saved translation store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(appOpts)
			if err != nil {
				return err
			}
			if err := app.initLogger(false); err != nil {
				return err
			}
			defer logger.Close()

			opts.PDFPath = args[0]
			report, err := app.Export(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Translated PDF saved to %s (%d pages, %d insertions, %d enlarged)\n",
				report.Output, report.Pages, report.Insertions, report.Grown)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.StorePath, "store", "", "translation store (default <stem>_translations.json)")
	cmd.Flags().StringVarP(&opts.OutputPath, "output", "o", "", "output file (default <stem>_translated.pdf)")
	cmd.Flags().StringVar(&opts.FontName, "font-name", "", "font name (overrides config)")
	cmd.Flags().StringVar(&opts.FontFile, "font-file", "", "TTF font file (overrides config)")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
