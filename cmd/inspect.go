package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"supplier-pricing/utils"
)

var inspectLinks int

var inspectCmd = &cobra.Command{
	Use:   "inspect <supplier> [path]",
	Short: "List the form controls and links of a supplier page",
	Long: "Loads a supplier page in the browser and prints its inputs, selects, buttons " +
		"and links with suggested selectors, to help update an adapter after a site change.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, ok := cfg.Supplier(args[0])
		if !ok {
			return fmt.Errorf("unknown supplier: %s", args[0])
		}
		url := strings.TrimRight(settings.BaseURL, "/")
		if len(args) == 2 {
			url += "/" + strings.TrimLeft(args[1], "/")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 3*cfg.Timeout)
		defer cancel()

		browser := utils.NewBrowserClient(cfg, logger)
		defer browser.Close()
		session, err := browser.Open(ctx)
		if err != nil {
			return err
		}
		defer session.Close()

		if err := session.Navigate(ctx, url); err != nil {
			return fmt.Errorf("failed to get page: %w", err)
		}
		html, err := session.HTML(ctx)
		if err != nil {
			return err
		}
		outline, err := utils.OutlinePage(html, inspectLinks)
		if err != nil {
			return fmt.Errorf("failed to parse HTML: %w", err)
		}
		printOutline(cmd.OutOrStdout(), url, outline)
		return nil
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLinks, "links", 20, "Maximum number of links to list (0 = all)")
	rootCmd.AddCommand(inspectCmd)
}

func printOutline(w io.Writer, url string, outline utils.PageOutline) {
	fmt.Fprintf(w, "=== %s ===\n", url)
	fmt.Fprintf(w, "Title: %s\n", outline.Title)
	fmt.Fprintf(w, "Controls found: %d\n", len(outline.Controls))
	for i, c := range outline.Controls {
		fmt.Fprintf(w, "  %d: %s %s", i+1, c.Tag, c.Selector)
		if c.Type != "" {
			fmt.Fprintf(w, " type=%s", c.Type)
		}
		if c.Label != "" {
			fmt.Fprintf(w, " label='%s'", c.Label)
		}
		if len(c.Options) > 0 {
			fmt.Fprintf(w, " options=%s", strings.Join(c.Options, "|"))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Links: %d\n", len(outline.Links))
	for i, l := range outline.Links {
		fmt.Fprintf(w, "  %d: href='%s', text='%s'\n", i+1, l.Href, l.Text)
	}
}
