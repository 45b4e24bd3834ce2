package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/features"
	"github.com/aihub/wpredisearch/internal/index"
	"github.com/aihub/wpredisearch/internal/search"
)

const reindexHint = "Just run wprs index --setup"

type command struct {
	summary string
	run     func(c *cli, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"index":              {"Index all posts for the site", (*cli).index},
	"create-index":       {"Drop and create the index with the current settings", (*cli).createIndex},
	"drop-index":         {"Drop the index and its documents", (*cli).dropIndex},
	"info":               {"Show index statistics", (*cli).info},
	"search":             {"Run a site search", (*cli).searchPosts},
	"suggest":            {"Query the live search dictionary", (*cli).suggest},
	"list-features":      {"List active (or --all registered) features", (*cli).listFeatures},
	"activate-feature":   {"Activate a feature by slug", (*cli).activateFeature},
	"deactivate-feature": {"Deactivate a feature by slug", (*cli).deactivateFeature},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: wprs <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-20s %s\n", name, commands[name].summary)
	}
}

// engineCheck 一次性刷新引擎健康状态
type engineCheck interface {
	Check(ctx context.Context) error
}

type cli struct {
	manager  *index.Manager
	runner   *index.Runner
	features *features.Registry
	search   *search.Service
	live     *features.LiveSearch
	health   engineCheck
	out      io.Writer
}

func (c *cli) execute(ctx context.Context, args []string) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(c, ctx, args[1:])
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func (c *cli) line(format string, a ...interface{}) {
	fmt.Fprintf(c.out, format+"\n", a...)
}

func (c *cli) index(ctx context.Context, args []string) error {
	fs := c.flags("index")
	opts := index.IndexOptions{}
	var postTypes, postIDs string
	fs.BoolVar(&opts.Setup, "setup", false, "drop and create the index before indexing")
	fs.IntVar(&opts.BatchSize, "posts-per-page", index.DefaultCLIBatchSize, "number of posts indexed per batch")
	fs.IntVar(&opts.BatchSize, "batch-size", index.DefaultCLIBatchSize, "alias of --posts-per-page")
	fs.IntVar(&opts.Offset, "offset", 0, "skip this many posts before indexing")
	fs.StringVar(&postTypes, "post-type", "", "comma separated post types to index")
	fs.StringVar(&postTypes, "post-types", "", "alias of --post-type")
	fs.StringVar(&postIDs, "post-ids", "", "comma separated post IDs to index")
	fs.BoolVar(&opts.WriteToDisk, "write-to-disk", false, "persist the index after indexing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	opts.PostTypes = splitList(postTypes)
	opts.PostIDs = parseIDs(postIDs)

	if opts.Setup {
		c.line("Recreating index %s...", c.manager.Name())
	}
	c.line("Indexing posts... ")

	report, err := c.runner.IndexAll(ctx, opts)
	if report != nil {
		c.line("Number of posts indexed on site: %d", report.Indexed)
	}
	if err != nil {
		return err
	}
	c.line("Total time elapsed: %s", report.Elapsed.Round(time.Millisecond))

	if len(report.Failed) > 0 {
		for _, f := range report.Failed {
			c.line("  - %v", f)
		}
		return fmt.Errorf("number of post index errors on site: %d", len(report.Failed))
	}

	if err := c.features.ClearReindexPending(ctx); err != nil {
		return err
	}
	c.line("Success: Done!")
	return nil
}

func (c *cli) createIndex(ctx context.Context, args []string) error {
	if err := c.flags("create-index").Parse(args); err != nil {
		return err
	}
	schema, err := c.manager.CreateIndex(ctx)
	if err != nil {
		return fmt.Errorf("index creating failed: %w", err)
	}
	c.line("Success: Index created (%d fields)", len(schema.Fields))
	return nil
}

func (c *cli) dropIndex(ctx context.Context, args []string) error {
	if err := c.flags("drop-index").Parse(args); err != nil {
		return err
	}
	c.line("Dropping index...")
	if err := c.manager.DropIndex(ctx); err != nil {
		return fmt.Errorf("index drop failed: %w", err)
	}
	c.line("Success: Index dropped")
	return nil
}

func (c *cli) info(ctx context.Context, args []string) error {
	if err := c.flags("info").Parse(args); err != nil {
		return err
	}
	info, err := c.manager.Info(ctx)
	if err != nil {
		return err
	}
	cursor, err := c.manager.Cursor(ctx)
	if err != nil {
		return err
	}

	c.line("===== Info =====")
	c.line("index_name: %s", info.Name)
	c.line("num_docs: %d", info.NumDocs)
	c.line("num_terms: %d", info.NumTerms)
	c.line("num_records: %d", info.NumRecords)
	c.line("fields:")
	for _, f := range info.Fields {
		c.line("   - %s", f)
	}
	c.line("cursor: %d/%d", cursor.Offset, cursor.FoundPosts)
	return nil
}

func (c *cli) searchPosts(ctx context.Context, args []string) error {
	fs := c.flags("search")
	paged := fs.Int("paged", 1, "result page")
	perPage := fs.Int("per-page", search.DefaultPostsPerPage, "results per page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	term := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(term) == "" {
		return errors.New("search term is required")
	}

	if c.health != nil {
		// 失败时健康状态置为不可用，搜索回退到关系库
		_ = c.health.Check(ctx)
	}

	resp, err := c.search.Search(ctx, search.Request{Term: term, Paged: *paged, PostsPerPage: *perPage})
	if err != nil {
		return err
	}
	source := "database"
	if resp.Engine {
		source = "redisearch"
	}
	c.line("Found %d posts (%s, page %d/%d)", resp.FoundPosts, source, *paged, resp.MaxNumPages)
	for _, p := range resp.Posts {
		c.line("%d\t%s\t%s", p.ID, p.PostType, p.PostTitle)
	}
	return nil
}

func (c *cli) suggest(ctx context.Context, args []string) error {
	fs := c.flags("suggest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	active, err := c.features.IsActive(ctx, c.live.Info().Slug)
	if err != nil {
		return err
	}
	if !active {
		return errors.New("live search is not active")
	}

	items, err := c.live.Suggest(ctx, strings.Join(fs.Args(), " "))
	if err != nil {
		return err
	}
	for _, s := range items {
		c.line("%s\t%s", s.Term, s.Payload)
	}
	return nil
}

func (c *cli) listFeatures(ctx context.Context, args []string) error {
	fs := c.flags("list-features")
	all := fs.Bool("all", false, "list every registered feature")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := c.features.List(ctx, *all)
	if err != nil {
		return err
	}
	if *all {
		c.line("Registered features:")
	} else {
		c.line("Active features:")
	}
	for _, st := range list {
		c.line("%s", st.Slug)
	}
	return nil
}

func (c *cli) activateFeature(ctx context.Context, args []string) error {
	slug, err := c.slugArg("activate-feature", args)
	if err != nil {
		return err
	}
	result, err := c.features.Activate(ctx, slug)
	if err != nil {
		return featureError(err)
	}
	if len(result.Warnings) > 0 {
		c.line("Warning: Feature can be used, but there are warnings: %s", strings.Join(result.Warnings, "\n\n"))
	}
	if result.RequiresReindex {
		c.line("Warning: This feature requires a re-index. It might not work properly until you run the index command.")
		c.line(reindexHint)
	}
	c.line("Success: Feature %s activated", c.title(slug))
	return nil
}

func (c *cli) deactivateFeature(ctx context.Context, args []string) error {
	slug, err := c.slugArg("deactivate-feature", args)
	if err != nil {
		return err
	}
	result, err := c.features.Deactivate(ctx, slug)
	if err != nil {
		return featureError(err)
	}
	if result.RequiresReindex {
		c.line("Warning: This feature requires a re-index after deactivation also. It might not work properly until you run the index command.")
		c.line(reindexHint)
	}
	c.line("Success: Feature %s deactivated", c.title(slug))
	return nil
}

func (c *cli) slugArg(name string, args []string) (string, error) {
	fs := c.flags(name)
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("usage: wprs %s <feature>", name)
	}
	return fs.Arg(0), nil
}

func (c *cli) title(slug string) string {
	if f, ok := c.features.Get(slug); ok {
		return f.Info().Title
	}
	return slug
}

func featureError(err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	switch appErr.Code {
	case apperrors.ErrCodeFeatureNotFound:
		return errors.New("No feature with this slug is registered.")
	case apperrors.ErrCodeFeatureRequirements:
		if msgs, ok := appErr.Details.([]string); ok {
			return fmt.Errorf("Feature requirements are not met: %s", strings.Join(msgs, "\n\n"))
		}
	}
	return errors.New(appErr.Message)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseIDs 忽略非正整数
func parseIDs(raw string) []uint64 {
	var ids []uint64
	for _, item := range splitList(raw) {
		id, err := strconv.ParseUint(item, 10, 64)
		if err != nil || id == 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
