package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/dcmcache/internal/owner"
	"github.com/zjrosen/dcmcache/internal/presentation"
)

var slicesCmd = &cobra.Command{
	Use:   "slices <id>",
	Short: "List a dataset's valid slices in file name order",
	Args:  cobra.ExactArgs(1),
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

		slices, err := s.svc.ListValidSlices(cmd.Context(), id)
		if err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatSlices(presentation.FromSlices(id, slices))
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata <id> <file>",
	Short: "Print a slice's metadata as JSON",
	Args:  cobra.ExactArgs(2),
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

		md, err := s.svc.SliceMetadata(cmd.Context(), id, args[1])
		if err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).Format(md)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <id> <file>",
	Short: "Decode a slice to a cached BMP preview and print its location",
	Args:  cobra.ExactArgs(2),
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

		preview, err := s.svc.SlicePreview(cmd.Context(), id, args[1])
		if err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).Format(preview)
	},
}

func init() {
	rootCmd.AddCommand(slicesCmd, metadataCmd, previewCmd)
}
