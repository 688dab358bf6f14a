// Command filemask obfuscates file names, headers or contents in place.
//
//	filemask encrypt --type content --mode cascade ~/private
//	filemask decrypt --type content --mode cascade ~/private
package main

import (
	"crypto/subtle"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/absfs/filemask"
)

type options struct {
	configPath string
	hiddenDir  string
	chunkSize  int
	verbose    bool
	mode       string
	encodeType string
	logFile    string
	jsonOutput bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "filemask",
		Short:         "Reversibly obfuscate files and directories with a password",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (yaml or json)")
	pf.StringVar(&opts.hiddenDir, "hidden-dir", "", "name of the sidecar directory")
	pf.IntVar(&opts.chunkSize, "chunk-size", 0, "buffer size for content encoding")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log every decision")
	pf.StringVar(&opts.logFile, "log-file", "", "also write logs to this file, rotated")
	pf.BoolVar(&opts.jsonOutput, "json", false, "print reports as JSON lines")
	pf.StringVarP(&opts.mode, "mode", "m", "file", "selection: file, dir or cascade")
	pf.StringVarP(&opts.encodeType, "type", "t", "content", "what to encode: name, header or content")

	root.AddCommand(
		newRunCmd(opts, "encrypt", "Encrypt a file or directory", true),
		newRunCmd(opts, "decrypt", "Decrypt a file or directory", false),
	)
	return root
}

func newRunCmd(opts *options, use, short string, encrypt bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " PATH...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args, encrypt)
		},
	}
}

func run(cmd *cobra.Command, opts *options, args []string, encrypt bool) error {
	s, err := loadSettings(opts.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("hidden-dir") {
		s.HiddenDir = opts.hiddenDir
	}
	if cmd.Flags().Changed("chunk-size") {
		s.ChunkSize = opts.chunkSize
	}
	if cmd.Flags().Changed("verbose") {
		s.Verbose = opts.verbose
	}
	if cmd.Flags().Changed("log-file") {
		s.LogFile = opts.logFile
	}

	mode, err := filemask.ParseSelectMode(opts.mode)
	if err != nil {
		return err
	}
	typ, err := filemask.ParseEncodeType(opts.encodeType)
	if err != nil {
		return err
	}

	logger, err := newLogger(s)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := s.maskerConfig()
	cfg.Logger = logger
	m, err := filemask.New(filemask.NewOSFS(), cfg)
	if err != nil {
		return err
	}

	password := []byte(s.Password)
	if len(password) == 0 {
		password, err = promptPassword(encrypt)
		if err != nil {
			return err
		}
	}
	defer clear(password)

	out := cmd.OutOrStdout()
	for _, arg := range args {
		target, err := filepath.Abs(arg)
		if err != nil {
			return errors.Wrapf(err, "resolve %s", arg)
		}

		var report *filemask.Report
		if encrypt {
			report, err = m.Encrypt(target, mode, typ, password)
		} else {
			report, err = m.Decrypt(target, mode, typ, password)
		}
		if err != nil {
			return err
		}
		if opts.jsonOutput {
			if err := writeJSONReport(out, target, report); err != nil {
				return err
			}
			continue
		}
		printReport(out, target, report)
	}
	return nil
}

func promptPassword(confirm bool) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("stdin is not a terminal; set FILEMASK_PASSWORD instead")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, errors.Wrap(err, "read password")
	}
	if len(pw) == 0 {
		return nil, errors.New("empty password is not allowed")
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Confirm password: ")
		again, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			clear(pw)
			return nil, errors.Wrap(err, "read password confirmation")
		}
		defer clear(again)
		if subtle.ConstantTimeCompare(pw, again) != 1 {
			clear(pw)
			return nil, errors.New("passwords do not match")
		}
	}
	return pw, nil
}
