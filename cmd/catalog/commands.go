package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/catalog"
	"github.com/kailas-cloud/catalog/internal/version"
)

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			items, err := a.client.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.flagJSON {
				return printJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintf(out, "No results for %q\n", query)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, it := range items {
				formatted, _ := catalog.FormatIdentifier(it.ID)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", formatted, it.Name, it.ImageAlt)
			}
			return tw.Flush()
		},
	}
}

func newMetadataCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <id>",
		Short: "Print a product document, fetching it on a cache miss",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := a.client.Metadata(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), md.Document)
		},
	}
}

func newThumbnailCmd(a *app) *cobra.Command {
	var src string
	cmd := &cobra.Command{
		Use:   "thumbnail <id>",
		Short: "Download a product thumbnail into the cache and print its path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.client.Thumbnail(cmd.Context(), args[0], src)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&src, "src", "", "Image URL, as returned by search (mainImageUrl)")
	_ = cmd.MarkFlagRequired("src")
	return cmd
}

func newModelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "model <id>",
		Short: "Download a product's binary 3D model into the cache and print its path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.client.Model(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newAvailabilityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "availability <id>",
		Short: "Report whether a product has a 3D model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exists, err := a.client.CheckAvailability(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": catalog.CompactIdentifier(args[0]), "exists": exists})
			}
			if exists {
				printOK(cmd.OutOrStdout(), args[0], "3D model available")
			} else {
				printSkip(cmd.OutOrStdout(), args[0], "no 3D model")
			}
			return nil
		},
	}
}

func newFormatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "format <id>...",
		Short:       "Print the compact and grouped forms of product identifiers",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"offline": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var failed int
			for _, arg := range args {
				formatted, err := catalog.FormatIdentifier(arg)
				if err != nil || !catalog.IsValidIdentifier(arg) {
					printErr(cmd.ErrOrStderr(), arg, "not a product identifier")
					failed++
					continue
				}
				if a.flagJSON {
					if err := printJSON(out, map[string]string{
						"input": arg, "compact": catalog.CompactIdentifier(arg), "formatted": formatted,
					}); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", catalog.CompactIdentifier(arg), formatted)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d identifiers invalid", failed, len(args))
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"offline": "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "catalog %s (commit %s, built %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
