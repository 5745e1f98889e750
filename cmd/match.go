package cmd

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"os"

	"github.com/kozaktomas/faceid/internal/config"
	"github.com/kozaktomas/faceid/internal/facematch"
	"github.com/kozaktomas/faceid/internal/imagedata"
	"github.com/kozaktomas/faceid/internal/matcher"
	"github.com/spf13/cobra"
)

// Exit codes used with --exit-code.
const (
	exitNoMatch = 2
	exitNoFace  = 3
)

var matchCmd = &cobra.Command{
	Use:   "match <image>",
	Short: "Check whether an image shows a known face",
	Long: `Extract the first face of <image> and compare it with a collection of known
face encodings, loaded either from a .npy file or from a user's database row.

Prints "Match!", "No match!" or "No face found!". All three outcomes exit 0
unless --exit-code is given, in which case no match exits 2 and no face exits 3.

Examples:
  # Compare with encodings exported earlier
  faceid match door.jpg --known user42.npy

  # Compare with the encodings stored for user 42
  faceid match door.jpg --user 42 --exit-code`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("known", "", "File with known encodings (.npy)")
	matchCmd.Flags().Int64("user", 0, "Load known encodings from this user's database row")
	matchCmd.Flags().Float64("tolerance", 0, "Maximum distance counted as a match (default from MATCH_TOLERANCE)")
	matchCmd.Flags().String("metric", "", "Distance metric: euclidean or cosine (default from MATCH_METRIC)")
	matchCmd.Flags().Bool("exit-code", false, "Exit 2 on no match and 3 when no face is found")
	matchCmd.Flags().Bool("json", false, "Output as JSON")
	matchCmd.MarkFlagsMutuallyExclusive("known", "user")
	matchCmd.MarkFlagsOneRequired("known", "user")
}

// matchOutput is the --json form of a match result.
type matchOutput struct {
	Outcome  matcher.Outcome `json:"outcome"`
	Matched  bool            `json:"matched"`
	Best     int             `json:"best_index"`
	Distance *float64        `json:"distance"`
}

// applyMatchFlags overrides the configured metric and tolerance from flags.
func applyMatchFlags(cmd *cobra.Command, cfg *config.Config) (facematch.Metric, error) {
	if t := mustGetFloat64(cmd, "tolerance"); t > 0 {
		cfg.Match.Tolerance = t
	}
	name := cfg.Match.Metric
	if m := mustGetString(cmd, "metric"); m != "" {
		name = m
	}
	return facematch.ParseMetric(name)
}

func readImageFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	img, _, err := imagedata.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// outcomeError converts an outcome into the process result requested by --exit-code.
func outcomeError(cmd *cobra.Command, outcome matcher.Outcome) error {
	if !mustGetBool(cmd, "exit-code") {
		return nil
	}
	switch outcome {
	case matcher.NoMatch:
		return &exitCodeError{code: exitNoMatch}
	case matcher.NoFace:
		return &exitCodeError{code: exitNoFace}
	default:
		return nil
	}
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	metric, err := applyMatchFlags(cmd, cfg)
	if err != nil {
		return err
	}

	img, err := readImageFile(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	var known [][]float32
	if path := mustGetString(cmd, "known"); path != "" {
		if known, err = matcher.LoadKnownFile(path); err != nil {
			return err
		}
	} else {
		store, err := openStore(&cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		known, err = matcher.LoadKnownUser(ctx, store, mustGetInt64(cmd, "user"))
		store.Close()
		if err != nil {
			return err
		}
	}

	extractor, err := newExtractor(&cfg.Embedding)
	if err != nil {
		return fmt.Errorf("creating face extractor: %w", err)
	}
	defer extractor.Close()

	m := matcher.New(extractor, metric, cfg.Match.Tolerance, cfg.Match.Neighbors)
	res, err := m.Match(ctx, known, img)
	if err != nil {
		return err
	}

	if err := printMatch(cmd.OutOrStdout(), mustGetBool(cmd, "json"), res); err != nil {
		return err
	}
	return outcomeError(cmd, res.Outcome)
}

func printMatch(w io.Writer, asJSON bool, res *matcher.MatchResult) error {
	if !asJSON {
		_, err := fmt.Fprintln(w, res.Outcome.Message())
		return err
	}
	out := matchOutput{
		Outcome: res.Outcome,
		Matched: res.Outcome == matcher.Match,
		Best:    res.Best,
	}
	if d := res.Distance; !math.IsInf(d, 0) && !math.IsNaN(d) {
		out.Distance = &d
	}
	return writeJSON(w, out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing JSON output: %w", err)
	}
	return nil
}
