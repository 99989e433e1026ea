// shift - batch correction of survey image positions
//
// Groups drone photographs into flights by capture time, then writes
// corrected positions either by applying ground-control deltas per flight or
// by interpolating a PPK track at each capture instant.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uav-shift/backend/internal/config"
	"github.com/uav-shift/backend/internal/imagesource"
	"github.com/uav-shift/backend/internal/logging"
	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/session"
)

// Version info (set during build)
var Version = "dev"

// rootOptions are the persistent flags shared by every command
type rootOptions struct {
	configPath string
	maxGap     int
	logLevel   string
	manifest   string
	imageDir   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "shift",
		Short: "Correct survey image positions per flight",
		Long: `shift groups survey photographs into flight sets separated by gaps in
capture time and writes corrected positions for every image.

Images come from an exiftool-style CSV manifest (--images) or are read
directly from the EXIF data of a folder of photographs (--dir).

Examples:
  shift sets --images manifest.csv --max-gap 30
  shift correct --dir ./flight --corrections gcp.csv --out corrected.csv
  shift ppk --images manifest.csv --ppk base.csv --ppk rover.csv --out ppk.csv`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "XML configuration file (default: built-in defaults)")
	pf.IntVar(&opts.maxGap, "max-gap", 0, "maximum gap in minutes between images of one flight set (1-120)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error, off)")
	pf.StringVar(&opts.manifest, "images", "", "image manifest CSV")
	pf.StringVar(&opts.imageDir, "dir", "", "folder of images to read EXIF data from")
	root.MarkFlagsMutuallyExclusive("images", "dir")

	root.AddCommand(
		newSetsCmd(opts),
		newCorrectCmd(opts),
		newPPKCmd(opts),
	)
	return root
}

// loadConfig reads --config when given and applies the flag overrides
func (o *rootOptions) loadConfig() (*config.AppConfig, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		if _, err := os.Stat(o.configPath); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg.Storage.TempDirectory = os.TempDir()
	}
	if o.maxGap != 0 {
		if err := session.ValidateGap(o.maxGap); err != nil {
			return nil, err
		}
		cfg.Processing.MaxGapMinutes = o.maxGap
	}
	if o.logLevel != "" {
		cfg.Advanced.LogLevel = o.logLevel
	} else if o.configPath == "" {
		cfg.Advanced.LogLevel = "warn"
	}
	return cfg, nil
}

// openSession builds a session and loads the images named by --images or --dir
func (o *rootOptions) openSession(ctx context.Context, stderr io.Writer) (*session.Session, *config.AppConfig, error) {
	if o.manifest == "" && o.imageDir == "" {
		return nil, nil, fmt.Errorf("%w: one of --images or --dir is required", models.ErrMissingInput)
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewWithOutput("shift", cfg.Advanced.LogLevel, stderr)

	sess := session.New("cli", cfg.SessionOptions(logger))
	if o.manifest != "" {
		_, err = sess.LoadImagesFromManifest(o.manifest)
	} else {
		_, err = sess.LoadImagesFromDir(ctx, imagesource.NewScanner(logger), o.imageDir)
	}
	if err != nil {
		sess.Close()
		return nil, nil, err
	}
	return sess, cfg, nil
}

// parseSetNumbers turns "1,3" into 0-based set indices. Empty means all sets.
func parseSetNumbers(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: set number %q", models.ErrSetNotFound, p)
		}
		out = append(out, n-1)
	}
	return out, nil
}

// warnDiagnostics prints every diagnostic as a warning line
func warnDiagnostics(w io.Writer, diags []models.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "warning: %s\n", d)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Cancelled, no output written")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
