package imagectl

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"imaged/internal/dicom"
	"imaged/internal/imageio"
	"imaged/internal/registry"
)

// buildRootCmd constructs the imagectl command tree.
func buildRootCmd() *cobra.Command {
	var formatsFile string

	root := &cobra.Command{
		Use:           "imagectl",
		Short:         "Inspect image formats and DICOM directories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&formatsFile, "formats", os.Getenv("IMAGED_FORMATS"),
		"Format catalog file (YAML); built-in catalog when empty")

	loadCatalog := func() (*imageio.Catalog, error) {
		return registry.Load(formatsFile)
	}

	formatsCmd := &cobra.Command{
		Use:     "formats",
		Short:   "List the format catalog",
		Example: "  imagectl formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}
			for _, f := range catalog.Formats() {
				caps := ""
				if f.CanRead {
					caps += "r"
				}
				if f.CanWrite {
					caps += "w"
				}
				if f.SupportsSeries {
					caps += "s"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-16s [%s] %s\n",
					f.ID, f.Name, caps, strings.Join(f.Extensions, " "))
			}
			return nil
		},
	}
	root.AddCommand(formatsCmd)

	var guessMode string
	guessCmd := &cobra.Command{
		Use:     "guess <path>",
		Short:   "Guess the file format for a path",
		Example: "  imagectl guess /data/scan.nii.gz\n  imagectl guess --mode save /data/out.img",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}
			mode := imageio.ModeLoad
			switch guessMode {
			case "", "load":
			case "save":
				mode = imageio.ModeSave
			default:
				return fmt.Errorf("unknown mode: %s", guessMode)
			}
			det := imageio.NewDetector(catalog, nil, imageio.NewStubIO(catalog))
			cand := det.Guess(args[0], mode)
			if !cand.OK {
				fmt.Fprintf(cmd.OutOrStdout(), "undetermined (file exists: %v)\n", cand.FileExists)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) via %s, file exists: %v\n",
				cand.Format.ID, cand.Format.Name, cand.Source, cand.FileExists)
			return nil
		},
	}
	guessCmd.Flags().StringVar(&guessMode, "mode", "load", "Detection mode: load|save")
	root.AddCommand(guessCmd)

	dicomCmd := &cobra.Command{
		Use:   "dicom",
		Short: "DICOM directory utilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("dicom requires a subcommand: ls")
		},
	}
	dicomLs := &cobra.Command{
		Use:     "ls <dir>",
		Short:   "List candidate series under a directory",
		Example: "  imagectl dicom ls /data/study1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enum := dicom.NewFSEnumerator()
			series, err := enum.Enumerate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(series) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no series found")
				return nil
			}
			for i, s := range series {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-24s %d files\n", i, s.Description, len(s.Files))
			}
			return nil
		},
	}
	dicomCmd.AddCommand(dicomLs)
	root.AddCommand(dicomCmd)

	filterCmd := &cobra.Command{
		Use:     "filter",
		Short:   "Print the file-dialog filter string for the catalog",
		Example: "  imagectl filter --mode save",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}
			mode := imageio.ModeLoad
			if v, _ := cmd.Flags().GetString("mode"); v == "save" {
				mode = imageio.ModeSave
			}
			fmt.Fprintln(cmd.OutOrStdout(), catalog.Filter(mode, "%s (%s)", "*.%s", " ", ";;"))
			return nil
		},
	}
	filterCmd.Flags().String("mode", "load", "Catalog mode: load|save")
	root.AddCommand(filterCmd)

	return root
}

// Execute runs the CLI and returns a process exit code.
func Execute() int {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "imagectl:", err)
		return 1
	}
	return 0
}
