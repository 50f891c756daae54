package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/dcmcache/internal/owner"
	"github.com/zjrosen/dcmcache/internal/presentation"
)

var reconstructThreshold float64

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct <id>",
	Short: "Build (or reuse) a dataset's surface mesh",
	Long: `Build a dataset's surface mesh with the configured external tools and
print its location. Meshes are cached by dataset name, so a later request
returns the cached mesh whatever its threshold.

Example:
  dcmcache reconstruct 0f8fad5b-d9cb-469f-a165-70867728950e --threshold 400`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context(), owner.SourceCLI)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		var threshold *float64
		if cmd.Flags().Changed("threshold") {
			threshold = &reconstructThreshold
		}
		mesh, err := s.svc.Reconstruct(cmd.Context(), id, threshold)
		if err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).Format(presentation.MeshDTO{
			DatasetID: mesh.DatasetID,
			Threshold: mesh.Threshold,
			MeshPath:  mesh.Path,
		})
	},
}

func init() {
	reconstructCmd.Flags().Float64VarP(&reconstructThreshold, "threshold", "t", 0,
		"isosurface threshold (default: reconstruction.threshold)")
	rootCmd.AddCommand(reconstructCmd)
}
