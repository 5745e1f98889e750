package cmd

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/kozaktomas/faceid/internal/matcher"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Find which user an image shows",
	Long: `Extract the first face of <image> and search the stored encodings of all
users for the nearest one. Users whose stored data cannot be decoded are skipped
with a warning.

Examples:
  faceid identify door.jpg
  faceid identify door.jpg --tolerance 0.5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().Float64("tolerance", 0, "Maximum distance counted as a match (default from MATCH_TOLERANCE)")
	identifyCmd.Flags().String("metric", "", "Distance metric: euclidean or cosine (default from MATCH_METRIC)")
	identifyCmd.Flags().Int("neighbors", 0, "Candidates examined in the index (default from MATCH_NEIGHBORS)")
	identifyCmd.Flags().Bool("exit-code", false, "Exit 2 on no match and 3 when no face is found")
	identifyCmd.Flags().Bool("json", false, "Output as JSON")
}

// identifyOutput is the --json form of an identify result.
type identifyOutput struct {
	Outcome  matcher.Outcome `json:"outcome"`
	UserID   *int64          `json:"user_id"`
	Distance *float64        `json:"distance"`
	Indexed  int             `json:"indexed"`
	Skipped  []int64         `json:"skipped,omitempty"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	metric, err := applyMatchFlags(cmd, cfg)
	if err != nil {
		return err
	}
	if n := mustGetInt(cmd, "neighbors"); n > 0 {
		cfg.Match.Neighbors = n
	}

	img, err := readImageFile(args[0])
	if err != nil {
		return err
	}

	store, extractor, release, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := commandContext()
	defer cancel()

	m := matcher.New(extractor, metric, cfg.Match.Tolerance, cfg.Match.Neighbors)
	res, err := m.Identify(ctx, store, img)
	if err != nil {
		return err
	}
	for _, id := range res.Skipped {
		fmt.Fprintf(os.Stderr, "Warning: skipped user %d: stored face data is unusable\n", id)
	}

	if err := printIdentify(cmd.OutOrStdout(), mustGetBool(cmd, "json"), res); err != nil {
		return err
	}
	return outcomeError(cmd, res.Outcome)
}

func printIdentify(w io.Writer, asJSON bool, res *matcher.IdentifyResult) error {
	if asJSON {
		out := identifyOutput{Outcome: res.Outcome, Indexed: res.Indexed, Skipped: res.Skipped}
		if res.Outcome == matcher.Match {
			id := res.UserID
			out.UserID = &id
		}
		if d := res.Distance; !math.IsInf(d, 0) && !math.IsNaN(d) {
			out.Distance = &d
		}
		return writeJSON(w, out)
	}

	if res.Outcome == matcher.Match {
		_, err := fmt.Fprintf(w, "%s User %d (distance %.4f)\n", res.Outcome.Message(), res.UserID, res.Distance)
		return err
	}
	_, err := fmt.Fprintln(w, res.Outcome.Message())
	return err
}
