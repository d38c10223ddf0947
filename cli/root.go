package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fahmaliyi/lockbox/config"
	"github.com/fahmaliyi/lockbox/passgen"
	"github.com/fahmaliyi/lockbox/strength"
	"github.com/fahmaliyi/lockbox/vault"
)

// runtime carries what PersistentPreRunE resolved to the subcommands.
type runtime struct {
	cfg *config.Config
	log *zap.Logger

	// appOpts lets tests swap the clipboard and secret reader.
	appOpts []AppOption
}

func (rt *runtime) load(cmd *cobra.Command) error {
	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	if rt.cfg, err = config.Load(v); err != nil {
		return err
	}
	if rt.log, err = NewLogger(rt.cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	rt.log.Debug("config loaded",
		zap.String("config", v.ConfigFileUsed()),
		zap.String("vault", rt.cfg.VaultPath()),
	)
	return nil
}

func (rt *runtime) store() *vault.Store {
	return vault.NewStore(rt.cfg.VaultPath(), rt.cfg.MetaPath(), vault.WithLogger(rt.log))
}

func (rt *runtime) newApp(cmd *cobra.Command) *App {
	opts := []AppOption{
		WithLogger(rt.log),
		WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
		WithClipboard(nil, rt.cfg.ClipboardTimeout),
		WithAutoSave(rt.cfg.AutoSave),
	}
	return NewApp(rt.store(), append(opts, rt.appOpts...)...)
}

// interactive unlocks (or creates) the vault and hands it to the REPL or TUI.
func (rt *runtime) interactive(cmd *cobra.Command, tui bool) error {
	if err := HardenProcess(); err != nil {
		rt.log.Warn("could not disable core dumps", zap.Error(err))
	}
	memguard.CatchInterrupt()
	defer memguard.Purge()

	app := rt.newApp(cmd)
	if err := app.Start(); err != nil {
		return errors.New(describeError(err))
	}
	if tui {
		return app.RunTUI()
	}
	return app.Run()
}

// NewRootCommand builds the lockbox command tree. Without a subcommand it
// opens the interactive shell.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(version, &runtime{})
}

func newRootCommand(version string, rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "lockbox",
		Short: "A local encrypted password and secure note vault",
		Long: `lockbox keeps logins and notes in a single encrypted file protected by a
master passphrase. Keys are derived with PBKDF2-HMAC-SHA256, content is sealed
with XChaCha20-Poly1305 and every write is guarded by an HMAC.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.load(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if rt.log != nil {
				_ = rt.log.Sync()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.interactive(cmd, false)
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newTUICommand(rt),
		newInitCommand(rt),
		newGenerateCommand(),
		newCheckCommand(),
	)
	return root
}

func newTUICommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the full screen interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.interactive(cmd, true)
		},
	}
}

func newInitCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new empty vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := rt.newApp(cmd)
			if app.store.Exists() {
				return errors.New(describeError(vault.ErrVaultAlreadyExists))
			}
			pass, err := app.readNewPassphrase()
			if err != nil {
				return errors.New(describeError(err))
			}
			defer memguard.WipeBytes(pass)
			if err := app.store.Create(pass); err != nil {
				return errors.New(describeError(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Vault created at %s\n", app.store.VaultPath())
			return nil
		},
	}
}

func newGenerateCommand() *cobra.Command {
	var opts passgen.Options
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a random password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passgen.Generate(opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pw)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&opts.Length, "length", "l", passgen.DefaultLength, "password length")
	f.BoolVar(&opts.Upper, "upper", false, "include upper case letters")
	f.BoolVar(&opts.Lower, "lower", false, "include lower case letters")
	f.BoolVar(&opts.Digits, "digits", false, "include digits")
	f.BoolVar(&opts.Symbols, "symbols", false, "include symbols (all classes when none is chosen)")
	return cmd
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check PASSWORD",
		Short: "Score a password",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := strength.Check(strings.Join(args, " "))
			verdict := "acceptable"
			if !r.Acceptable() {
				verdict = "rejected"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "score %d/4 (%s), cracked in %s: %s\n",
				r.Score, r.Label(), r.CrackTime, verdict)
			return nil
		},
	}
}
