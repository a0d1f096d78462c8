// Command silodiag inspects silo files.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-silo/silo"
)

// Config holds defaults read from the --config file. Flags given on the
// command line win.
type Config struct {
	ForceSingle bool   `toml:"force_single"`
	Checksums   bool   `toml:"checksums"`
	LogLevel    string `toml:"log_level"`
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{LogLevel: "warn"}
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}

// session carries the settings shared by every subcommand.
type session struct {
	configPath  string
	forceSingle bool
	checksums   bool
	verbose     bool

	stdout io.Writer
	stderr io.Writer
}

// open opens path read-only with the merged config and flag settings.
func (s *session) open(cmd *cobra.Command, path string) (*silo.File, error) {
	cfg, err := loadConfig(s.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("force-single") {
		cfg.ForceSingle = s.forceSingle
	}
	if cmd.Flags().Changed("checksums") {
		cfg.Checksums = s.checksums
	}
	if s.verbose {
		cfg.LogLevel = "debug"
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log_level")
	}
	log := logrus.New()
	log.SetOutput(s.stderr)
	log.SetLevel(level)

	return silo.Open(path,
		silo.WithReadOnly(true),
		silo.WithChecksums(cfg.Checksums),
		silo.WithForceSingle(cfg.ForceSingle),
		silo.WithLogger(log.WithField("cmd", cmd.Name())),
	)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	s := &session{stdout: stdout, stderr: stderr}
	cmd := &cobra.Command{
		Use:   "silodiag",
		Short: "Inspect silo mesh and field files.",
		Long: `
Lists directories, dumps object headers and reads variables of a silo
file. Files are always opened read-only.
`,
		SilenceUsage: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&s.configPath, "config", "c", "", "TOML file with force_single, checksums and log_level defaults")
	flags.BoolVar(&s.forceSingle, "force-single", false, "read double data as float")
	flags.BoolVar(&s.checksums, "checksums", false, "verify fletcher32 checksums")
	flags.BoolVarP(&s.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(newLsCommand(s))
	cmd.AddCommand(newDumpCommand(s))
	cmd.AddCommand(newReadCommand(s))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "silodiag: %v\n", err)
		os.Exit(int(silo.CodeOf(err)))
	}
}
