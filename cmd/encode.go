package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kozaktomas/faceid/internal/encoder"
	"github.com/kozaktomas/faceid/internal/imagedata"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const encodeFailedMessage = "Failed to encode and store face encodings."

var encodeCmd = &cobra.Command{
	Use:   "encode <user-id>",
	Short: "Encode a user's face images and store them in the database",
	Long: `Read <input-dir>/<user-id>.txt, extract the first face of every image and
store all embeddings in the user's face column with a single UPDATE.

Exit status is 0 only when the database write succeeded. Images without a face
are skipped; if no image has a face nothing is written and the exit status is 1.

Examples:
  # Encode user 42 from ./data/42.txt
  faceid encode 42

  # Read images from another directory and show progress
  faceid encode 42 --input-dir /var/lib/smarthome/faces --progress`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().String("input-dir", "", "Directory containing <user-id>.txt (overrides FACEID_INPUT_DIR)")
	encodeCmd.Flags().Bool("progress", false, "Show a progress bar")
}

func parseUserID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: must be an integer", arg)
	}
	return id, nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dir := mustGetString(cmd, "input-dir"); dir != "" {
		cfg.Input.Dir = dir
	}

	images, err := imagedata.ReadRowsFile(imagedata.RowsPath(cfg.Input.Dir, userID))
	if err != nil {
		return err
	}

	store, extractor, release, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer release()

	enc := encoder.New(extractor, store, cfg.Input.Dir)
	var bar *progressbar.ProgressBar
	if mustGetBool(cmd, "progress") {
		bar = progressbar.NewOptions(len(images),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Encoding faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		enc.OnImage = func(int, bool) { bar.Add(1) }
	}

	ctx, cancel := commandContext()
	defer cancel()

	out := cmd.OutOrStdout()
	res, err := enc.Encode(ctx, userID, images)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if errors.Is(err, encoder.ErrNoFaces) {
		fmt.Fprintln(out, "No face encodings found.")
		fmt.Fprintln(out, encodeFailedMessage)
		return &exitCodeError{code: 1}
	}
	if err != nil {
		fmt.Fprintln(out, encodeFailedMessage)
		return err
	}

	fmt.Fprintf(out, "Encoded %d of %d images (%d-dimensional embeddings, %d bytes).\n",
		res.Faces, res.Images, res.Dim, res.BlobSize)
	fmt.Fprintln(out, "Face encodings successfully stored in the database.")
	return nil
}
