package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/YuminosukeSato/spatialpred/config"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

var (
	cfgPath string
	cfg     *config.Config
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "spatialpred",
	Short: "Spatial predictor selection for regression models",
	Long: `Generates candidate spatial predictors from a distance matrix, ranks them by
how much they reduce the spatial autocorrelation of the model residuals, and
selects the subset that balances autocorrelation, fit and parsimony.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadViper(v, cfgPath)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgPath, "config", "", "path to a YAML config file (default ./spatialpred.yaml if present)")
	f.String("log-level", "", "debug, info, warn or error")
	f.String("log-format", "", "json or console")
	bindFlags(f, map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
	})
}

// bindFlags binds config keys to flags. Unchanged flags leave the file,
// environment and default values in place.
func bindFlags(f *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
