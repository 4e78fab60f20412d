package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"capturevault/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "capturevault",
		Short: "Save links, images and notes and search them later",
		Long: `capturevault stores captures per user, enriches saved links with
previews and answers searches over links, image captions and text.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "./configs", "directory holding config.yaml and .env")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newInspectCmd(opts))
	return cmd
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	return config.LoadConfig(o.configDir)
}

// newLogger builds the JSON logger shared by every component.
func newLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(out)
	log.SetLevel(level)
	return log
}
