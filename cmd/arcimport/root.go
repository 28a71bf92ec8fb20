package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/arcimport"
	"github.com/meigma/arcimport/archive"
	"github.com/meigma/arcimport/loader"
)

// appName names the config directory and the environment prefix.
const appName = "arcimport"

// Config keys.
const (
	keyPassword       = "password"
	keyVerbose        = "verbose"
	keySourceSuffix   = "suffix.source"
	keyCompiledSuffix = "suffix.compiled"
)

// cli holds state shared by all commands of one invocation.
type cli struct {
	v       *viper.Viper
	cfgFile string
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   appName,
		Short: "Import Starlark modules from password-protected zip archives",
		Long: `arcimport resolves dotted module names against a zip archive, the way
an import system would, and runs or inspects the result.

A module "a.b" is looked up as a/b/__init__.starc, a/b/__init__.star,
a/b.starc and a/b.star, in that order.

Settings come from flags, ARCIMPORT_* environment variables, and
$HOME/.config/arcimport/config.yaml.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	flags := root.PersistentFlags()
	flags.String("password", "", "archive password")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("source-suffix", loader.DefaultSourceSuffix, "module source suffix")
	flags.String("compiled-suffix", loader.DefaultCompiledSuffix, "precompiled module suffix")
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.config/arcimport/config.yaml)")

	bindings := map[string]string{
		keyPassword:       "password",
		keyVerbose:        "verbose",
		keySourceSuffix:   "source-suffix",
		keyCompiledSuffix: "compiled-suffix",
	}
	for key, name := range bindings {
		_ = c.v.BindPFlag(key, flags.Lookup(name)) //nolint:errcheck // only fails for a nil flag
	}

	root.AddCommand(
		c.runCmd(),
		c.lsCmd(),
		c.inspectCmd(),
		c.catCmd(),
		c.resourcesCmd(),
		c.checkCmd(),
		c.compileCmd(),
	)
	return root
}

// setup loads configuration and installs the logger.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}

	level := charmlog.InfoLevel
	if c.v.GetBool(keyVerbose) {
		level = charmlog.DebugLevel
	}
	c.logger = slog.New(charmlog.NewWithOptions(cmd.ErrOrStderr(), charmlog.Options{
		Prefix: appName,
		Level:  level,
	}))
	return nil
}

func (c *cli) loadConfig() error {
	c.v.SetEnvPrefix(strings.ToUpper(appName))
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()

	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil //nolint:nilerr // no home directory means no default config
		}
		c.v.AddConfigPath(dir)
		c.v.SetConfigName("config")
		c.v.SetConfigType("yaml")
	}

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && c.cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// configDir returns $XDG_CONFIG_HOME/arcimport or $HOME/.config/arcimport.
func configDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

func (c *cli) openImporter(cmd *cobra.Command, path string) (*arcimport.Importer, error) {
	out := cmd.OutOrStdout()
	return arcimport.Open(path,
		arcimport.WithPassword(c.v.GetString(keyPassword)),
		arcimport.WithLogger(c.logger),
		arcimport.WithSuffixes(c.v.GetString(keySourceSuffix), c.v.GetString(keyCompiledSuffix)),
		arcimport.WithPrint(func(msg string) { fmt.Fprintln(out, msg) }),
	)
}

func (c *cli) openLoader(path string) (*loader.Loader, io.Closer, error) {
	a, err := archive.Open(path,
		archive.WithPassword(c.v.GetString(keyPassword)),
		archive.WithLogger(c.logger),
	)
	if err != nil {
		return nil, nil, err
	}
	l := loader.New(a,
		loader.WithLogger(c.logger),
		loader.WithSuffixes(c.v.GetString(keySourceSuffix), c.v.GetString(keyCompiledSuffix)),
	)
	return l, a, nil
}
