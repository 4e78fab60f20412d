package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"capturevault/internal/domain"
	"capturevault/internal/enrich"
	"capturevault/internal/scraper"
)

type inspectOptions struct {
	timeout time.Duration
}

func newInspectCmd(root *rootOptions) *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect <url>",
		Short: "Fetch a URL and print the link preview it would produce",
		Long: `Runs one enrichment pass for the URL without storing anything: the page is
fetched, the URL canonicalized, metadata extracted and the content type
classified. The resulting preview is printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			log := newLogger(cmd.ErrOrStderr(), logrus.WarnLevel)

			enricher, err := enrich.NewEnricher(scraper.NewHTTPFetcher(fetchOptions(cfg), log), nil, log, enrich.WithWorkers(1))
			if err != nil {
				return err
			}
			defer enricher.Release(time.Second)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, opts.timeout)
			defer cancel()

			in := enricher.Build(ctx, args[0])
			preview := domain.LinkPreview{CanonicalURL: in.CanonicalURL}
			preview.Apply(in)

			data, err := json.MarshalIndent(preview, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal preview: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall time limit")
	return cmd
}
