package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankek/mermaid-export/internal/discover"
	"github.com/ankek/mermaid-export/internal/export"
	"github.com/ankek/mermaid-export/internal/validation"
)

// newExportCmd exports the diagrams of a single source file or URL.
func newExportCmd(flags *rootFlags) *cobra.Command {
	var (
		formats    []string
		output     string
		outDir     string
		theme      string
		background string
		width      int
		height     int
		scale      float64
		pdfFit     bool
		mode       string
		naming     string
	)

	cmd := &cobra.Command{
		Use:   "export <file|url>",
		Short: "Export the diagrams in one .mmd or Markdown source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			logger := flags.logger()

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			var units []discover.Unit
			if discover.IsRemote(source) {
				units, err = discover.FetchRemote(source, discover.Options{Logger: logger})
			} else {
				if err := validation.ValidateInputPath(source); err != nil {
					return err
				}
				var warnings []discover.Warning
				units, warnings, err = discover.Scan(cmd.Context(), source, discover.Options{MaxDepth: 0, Logger: logger})
				for _, w := range warnings {
					logger.Warn("skipped unreadable source", "path", w.Path, "error", w.Err)
				}
			}
			if err != nil {
				return err
			}
			if len(units) == 0 {
				return fmt.Errorf("no Mermaid diagrams found in %s", source)
			}

			formatList, err := parseFormats(formats)
			if err != nil {
				return err
			}
			namingStrategy, err := export.ParseNaming(pick(naming, cfg.Naming))
			if err != nil {
				return err
			}
			if output != "" && (len(units) > 1 || len(formatList) > 1) {
				return fmt.Errorf("--output names a single file; use --out-dir for %d diagrams × %d formats", len(units), len(formatList))
			}

			mgr, err := newManager(cfg, mode, logger)
			if err != nil {
				return err
			}
			defer mgr.Close()

			opts := renderOptions(cfg)
			if theme != "" {
				opts.Theme = theme
			}
			if background != "" {
				opts.Background = background
			}
			opts.Width = width
			opts.Height = height
			opts.Scale = scale
			opts.PDFFit = pdfFit

			dir := pick(outDir, cfg.OutputDir)
			for _, unit := range units {
				for _, format := range formatList {
					unitOpts := opts
					unitOpts.Format = format

					if output != "" {
						if err := validation.ValidateOutputPath(output); err != nil {
							return err
						}
					}
					res, err := mgr.Export(cmd.Context(), export.Request{
						Unit:       unit,
						Options:    unitOpts,
						OutputPath: output,
						OutputDir:  dir,
						Naming:     namingStrategy,
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %d bytes, via %s)\n",
						res.OutputPath, format, res.Bytes, res.Strategy)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&formats, "formats", "f", []string{"svg"}, "output formats (svg, png, pdf, webp, jpg)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "explicit output file path (single diagram, single format)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "output directory (default from config)")
	cmd.Flags().StringVar(&theme, "theme", "", "mermaid theme (default, dark, forest, neutral)")
	cmd.Flags().StringVar(&background, "background", "", "background color or \"transparent\"")
	cmd.Flags().IntVar(&width, "width", 0, "output width in px")
	cmd.Flags().IntVar(&height, "height", 0, "output height in px")
	cmd.Flags().Float64Var(&scale, "scale", 0, "raster scale factor")
	cmd.Flags().BoolVar(&pdfFit, "pdf-fit", false, "fit PDF page to the diagram")
	cmd.Flags().StringVar(&mode, "mode", "", "strategy mode (auto, cli-only, web-only)")
	cmd.Flags().StringVar(&naming, "naming", "", "output naming (overwrite, sequential, slug)")
	return cmd
}

// pick returns override when set, otherwise fallback.
func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
