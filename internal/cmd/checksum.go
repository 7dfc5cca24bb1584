package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Iron-Ham/buildrecorder/internal/checksum"
	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/spf13/cobra"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum <file>...",
	Short: "Print the md5 and sha1 digests recorded for files",
	Long: `Print the digests buildrecorder attaches to artifacts and dependencies.

Each file is read once. Paths that do not exist or are not regular files
are reported and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChecksum,
}

var checksumJSON bool

func init() {
	rootCmd.AddCommand(checksumCmd)

	checksumCmd.Flags().BoolVar(&checksumJSON, "json", false, "Print the digests as JSON")
}

func runChecksum(cmd *cobra.Command, args []string) error {
	return writeChecksums(cmd.OutOrStdout(), args, checksumJSON)
}

// fileChecksums is one line of checksum output.
type fileChecksums struct {
	Path string `json:"path"`
	MD5  string `json:"md5"`
	SHA1 string `json:"sha1"`
}

// writeChecksums digests every path and writes one line (or JSON object)
// per file. All files are attempted; the failures are joined.
func writeChecksums(w io.Writer, paths []string, asJSON bool) error {
	var (
		results []fileChecksums
		errs    []error
	)
	for _, path := range paths {
		sums, err := checksum.Compute(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w: %w", path, errors.ErrChecksumFailed, err))
			continue
		}
		if sums == nil {
			errs = append(errs, errors.NewNotFoundError("file", path))
			continue
		}
		results = append(results, fileChecksums{Path: path, MD5: sums[checksum.MD5], SHA1: sums[checksum.SHA1]})
	}

	if asJSON {
		if results == nil {
			results = []fileChecksums{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if _, err := fmt.Fprintf(w, "%s  %s  %s\n", r.MD5, r.SHA1, r.Path); err != nil {
				return err
			}
		}
	}
	return errors.Join(errs...)
}
