package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zjrosen/dcmcache/internal/owner"
	"github.com/zjrosen/dcmcache/internal/presentation"
)

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Copy a directory of slices into the cache",
	Long: `Copy a directory of DICOM slices into the cache under a fresh id and
print the new dataset as JSON. The dataset is named after the directory.

Example:
  dcmcache import ~/scans/abdomen`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), owner.SourceCLI)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		ds, err := s.svc.Import(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("importing %s: %w", args[0], err)
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).Format(presentation.FromDomainDataset(ds))
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a dataset and its derived artifacts",
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

		if err := s.svc.Remove(cmd.Context(), id); err != nil {
			return fmt.Errorf("removing %s: %w", id, err)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached datasets as JSON",
	Long: `List cached datasets as JSON, oldest import first.

Example:
  dcmcache list | jq '.[].name'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := openSession(cmd.Context(), owner.SourceCLI)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		list, err := s.svc.ListDatasets(cmd.Context())
		if err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatDatasets(presentation.FromDomainDatasets(list))
	},
}

func init() {
	rootCmd.AddCommand(importCmd, removeCmd, listCmd)
}

func parseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid dataset id %q: %w", arg, err)
	}
	return id, nil
}
