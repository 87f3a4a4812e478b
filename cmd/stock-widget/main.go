package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"stocksearch/internal/config"
	"stocksearch/internal/logger"
	"stocksearch/internal/termui"
	"stocksearch/internal/widget"
)

type options struct {
	parent     string
	configPath string
	hostName   string
	logLevel   string
}

func main() {
	opts := options{}

	rootCmd := &cobra.Command{
		Use:   "stock-widget",
		Short: "Stock search widget for the terminal",
		Long: `stock-widget embeds the stock search widget in a terminal session.

It connects to a host page over the widget channel, asks it for an access
token and sends searches to the stock-search action.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	rootCmd.Flags().StringVar(&opts.parent, "parent", "ws://localhost:9080/channel", "host page channel URL")
	rootCmd.Flags().StringVar(&opts.configPath, "config", "widget.config.json", "widget configuration file")
	rootCmd.Flags().StringVar(&opts.hostName, "host-name", "localhost", "host name the widget is served from")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadWidgetConfig(opts.configPath)
	if err != nil {
		return err
	}
	lg := logger.NewWithOutput(os.Stderr, opts.logLevel, false)

	host, err := widget.ConnectToParent(ctx, opts.parent, lg)
	if err != nil {
		return fmt.Errorf("connect to host: %w", err)
	}
	defer host.Close()

	screen := termui.NewScreen(os.Stdout)
	w := widget.New(host, screen.Elements(), widget.Options{
		ActionURL: cfg.StockSearch,
		HostName:  opts.hostName,
		Log:       lg,
	})
	defer w.Close()

	if err := w.Load(ctx); err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("Stock Search Widget")
	for {
		input, err := line.Prompt("stock> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch input {
		case ":quit", ":exit":
			return nil
		case ":signin":
			if err := w.ClickSignIn(ctx); err != nil {
				lg.WithError(err).Warn("sign-in failed")
				continue
			}
			if err := w.Load(ctx); err != nil {
				return err
			}
			continue
		}

		if w.State() == widget.Unauthenticated {
			fmt.Println("Sign in first (:signin).")
			continue
		}
		if err := w.Submit(ctx, url.Values{"words": {input}}); err != nil && !errors.Is(err, context.Canceled) {
			lg.WithFields(logrus.Fields{"words": input}).WithError(err).Warn("search failed")
		}

		select {
		case <-host.Done():
			return errors.New("host closed the channel")
		default:
		}
	}
}
