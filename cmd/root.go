/*
Copyright © 2023 dimas maulana dimasmaulana0305@gmail.com
*/
package cmd

import (
	"os"

	"github.com/dimasma0305/ctfdumper/function/config"
	"github.com/dimasma0305/ctfdumper/function/dumper"
	"github.com/dimasma0305/ctfdumper/function/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

type rootOptions struct {
	cfg      config.Config
	cfgFile  string
	authFile string
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd(&rootOptions{cfg: config.Default()})

// newRootCmd binds the flags to opts, whose cfg holds the flag defaults.
func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ctfdumper <url>",
		Short:   "A tool for dumping CTFd challenges",
		Version: version,
		Long: `ctfdumper logs into a CTFd platform, lists every published challenge through
the API and mirrors each one to <hostname>/<category>/<name>/ as a README.md
rendered from a template plus the challenge attachments.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(cmd, args, opts); err != nil {
				log.Fatal(err)
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.cfg.Username, "username", "u", "", "Platform username")
	flags.StringVarP(&opts.cfg.Password, "password", "p", "", "Platform password")
	flags.StringVar(&opts.authFile, "auth-file", "", "File containing username and password, separated by newline")
	flags.BoolVarP(&opts.cfg.NoLogin, "no-login", "n", false, "Use this option if the platform does not require authentication")
	flags.BoolVar(&opts.cfg.NoFile, "no-file", false, "Don't download files")
	flags.StringVar(&opts.cfg.NonceRegex, "nonce-regex", opts.cfg.NonceRegex, "Platform nonce regex")
	flags.StringVarP(&opts.cfg.Template, "template", "t", "", "Custom template path")
	flags.BoolVarP(&opts.cfg.Verbose, "verbose", "v", false, "Verbose")
	flags.BoolVar(&opts.cfg.TrustAll, "trust-all", false, "Keep every character of challenge names except slashes(/)")
	flags.StringVar(&opts.cfgFile, "config", "", "YAML file with default values for these flags")
	flags.StringVarP(&opts.cfg.OutputDir, "output", "o", opts.cfg.OutputDir, "Directory the <hostname> tree is written to")
	flags.StringVarP(&opts.cfg.FilterCategory, "filter-category", "c", "", "Filter challenge by category")
	flags.BoolVar(&opts.cfg.OnlySolved, "only-solved", false, "Only dump challenges solved by you")
	flags.BoolVar(&opts.cfg.Metadata, "metadata", false, "Also save the raw challenge as challenge.yaml")
	flags.BoolVar(&opts.cfg.SkipErrors, "skip-errors", false, "Log and skip a failing challenge instead of stopping")
	flags.BoolVar(&opts.cfg.Insecure, "insecure", false, "Skip TLS certificate verification")
	flags.StringVar(&opts.cfg.SanitizeRegex, "sanitize-regex", opts.cfg.SanitizeRegex, "Characters removed from directory names")
	flags.StringVar(&opts.cfg.FailureMarker, "failure-marker", opts.cfg.FailureMarker, "Text on the login response that means bad credentials")
	return cmd
}

func run(cmd *cobra.Command, args []string, opts *rootOptions) error {
	cfg, err := loadConfig(cmd.Flags(), args, opts)
	if err != nil {
		return err
	}
	log.SetVerbose(cfg.Verbose)
	log.Banner(version)

	d, err := dumper.Setup(cfg)
	if err != nil {
		return err
	}
	_, err = d.Run()
	return err
}

// loadConfig layers defaults, the config file, changed flags, the url argument
// and the auth file, in that order.
func loadConfig(flags *pflag.FlagSet, args []string, opts *rootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.cfgFile != "" {
		if err := cfg.LoadFile(opts.cfgFile); err != nil {
			return nil, err
		}
	}
	flags.Visit(func(f *pflag.Flag) {
		overlay(&cfg, &opts.cfg, f.Name)
	})
	if len(args) == 1 {
		cfg.BaseUrl = args[0]
	}
	if opts.authFile != "" {
		if err := cfg.LoadAuthFile(opts.authFile); err != nil {
			return nil, err
		}
	}
	cfg.Finalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overlay(dst *config.Config, src *config.Config, flag string) {
	switch flag {
	case "username":
		dst.Username = src.Username
	case "password":
		dst.Password = src.Password
	case "no-login":
		dst.NoLogin = src.NoLogin
	case "no-file":
		dst.NoFile = src.NoFile
	case "nonce-regex":
		dst.NonceRegex = src.NonceRegex
	case "template":
		dst.Template = src.Template
	case "verbose":
		dst.Verbose = src.Verbose
	case "trust-all":
		dst.TrustAll = src.TrustAll
	case "output":
		dst.OutputDir = src.OutputDir
	case "filter-category":
		dst.FilterCategory = src.FilterCategory
	case "only-solved":
		dst.OnlySolved = src.OnlySolved
	case "metadata":
		dst.Metadata = src.Metadata
	case "skip-errors":
		dst.SkipErrors = src.SkipErrors
	case "insecure":
		dst.Insecure = src.Insecure
	case "sanitize-regex":
		dst.SanitizeRegex = src.SanitizeRegex
	case "failure-marker":
		dst.FailureMarker = src.FailureMarker
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
