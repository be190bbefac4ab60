package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marky/internal/app"
	"github.com/MrSnakeDoc/marky/internal/config"
	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/importer"
	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/netutil"
)

// =============================================================================
// IMPORT / EXPORT COMMANDS
// =============================================================================

var (
	cliEmail    string
	cliPassword string
	exportOut   string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a YAML or Netscape HTML bookmark file",
	Long: `Imports bookmarks into an account's collection. URLs already present
are skipped. On the local backend --email may be omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a collection as a Netscape HTML bookmark file",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	for _, c := range []*cobra.Command{importCmd, exportCmd} {
		c.Flags().StringVar(&cliEmail, "email", "", "account email")
		c.Flags().StringVar(&cliPassword, "password", "", "account password (default $MARKY_PASSWORD)")
		rootCmd.AddCommand(c)
	}
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")
}

// openSession builds the app without serving and signs in.
func openSession(ctx context.Context) (*app.App, domain.Session, error) {
	cfg := config.Load()
	cfg.WatchLocal = false
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, domain.Session{}, err
	}

	password := cliPassword
	if password == "" {
		password = os.Getenv("MARKY_PASSWORD")
	}
	sess, err := a.SessionFor(ctx, cliEmail, password)
	if err != nil {
		a.Close()
		return nil, domain.Session{}, fmt.Errorf("failed to sign in: %w", err)
	}
	return a, sess, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ImportFile(ctx, sess, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✅ imported %d, skipped %d\n", res.Imported, res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(out, "   ⚠️  #%d %s: %s\n", e.Index+1, e.URL, e.Reason)
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	bookmarks, err := a.Bookmarks().Collection(ctx, sess)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer netutil.Close(f)
		w = f
	}
	return importer.ExportHTML(w, bookmarks)
}
