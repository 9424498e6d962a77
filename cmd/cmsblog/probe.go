package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/eringen/cmsblog"
	"github.com/eringen/cmsblog/content"
	"github.com/eringen/cmsblog/strapi"
)

var probeLimit int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Fetch a content summary from the CMS and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cmsblog.LoadConfig(envFiles...)
		if err != nil {
			return err
		}
		logger := initLogger(cfg)
		client, err := strapi.New(cfg.StrapiURL,
			strapi.WithToken(cfg.StrapiToken),
			strapi.WithTimeout(cfg.StrapiTimeout),
			strapi.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		return runProbe(cmd.Context(), cmd.OutOrStdout(), client, probeLimit, logger)
	},
}

func init() {
	probeCmd.Flags().IntVar(&probeLimit, "limit", 10, "number of recent posts to list")
}

func runProbe(ctx context.Context, w io.Writer, client *strapi.Client, limit int, logger *slog.Logger) error {
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("cms at %s is not reachable: %w", client.Origin(), err)
	}
	logger.Debug("cms reachable", "origin", client.Origin())

	fmt.Fprintf(w, "CMS: %s\n\n", client.Origin())

	if hero := client.FetchHero(ctx); hero != nil {
		fmt.Fprintf(w, "Hero: %s\n\n", hero.Title)
	} else {
		fmt.Fprint(w, "Hero: (none)\n\n")
	}

	posts := client.FetchRecentPosts(ctx, limit)
	fmt.Fprintf(w, "Recent posts (%d):\n", len(posts))
	writeTable(w, []string{"TITLE", "CATEGORY", "PUBLISHED", "VIEWS"}, postRows(posts, time.Now()))

	categories := client.FetchCategoriesWithCount(ctx)
	fmt.Fprintf(w, "\nCategories (%d):\n", len(categories))
	rows := make([][]string, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, []string{c.Name, c.Slug, humanize.Comma(int64(c.PostCount))})
	}
	writeTable(w, []string{"NAME", "SLUG", "POSTS"}, rows)
	return nil
}

func postRows(posts []content.Post, now time.Time) [][]string {
	rows := make([][]string, 0, len(posts))
	for _, p := range posts {
		category := "-"
		if p.Category != nil {
			category = p.Category.Name
		}
		published := "-"
		if !p.PublishedAt.IsZero() {
			published = humanize.RelTime(p.PublishedAt, now, "ago", "from now")
		}
		rows = append(rows, []string{
			runewidth.Truncate(p.Title, 48, "…"),
			category,
			published,
			humanize.Comma(int64(p.ViewCount)),
		})
	}
	return rows
}

// writeTable prints rows in columns aligned by display width.
func writeTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}
	line := func(cells []string) {
		var b strings.Builder
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(cells)-1 {
				b.WriteString(cell)
				continue
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		fmt.Fprintln(w, b.String())
	}
	line(header)
	for _, row := range rows {
		line(row)
	}
}
