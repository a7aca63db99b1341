package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/classpatch/cache"
	"github.com/chazu/classpatch/config"
	"github.com/chazu/classpatch/engine"
	"github.com/chazu/classpatch/scope"
)

func newApplyCommand(g *globalFlags) *cobra.Command {
	var (
		dir     string
		noCache bool
		jobs    int
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Patch every configured image with every configured template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FindAndLoad(dir)
			if err != nil {
				return err
			}
			if cfg == nil {
				return fmt.Errorf("no %s found in %s or its parents", config.FileName, dir)
			}
			if !cmd.Flags().Changed("verbose") && !cmd.Flags().Changed("log-file") &&
				(cfg.Log.Verbosity != 0 || cfg.Log.File != "") {
				logFile := cfg.Log.File
				if logFile != "" && !filepath.IsAbs(logFile) {
					logFile = filepath.Join(cfg.Dir, logFile)
				}
				configureLogging(cfg.Log.Verbosity, logFile)
			}

			b := &batch{cfg: cfg, jobs: jobs, dryRun: dryRun}
			if cfg.Cache.Enabled && !noCache {
				c, err := cache.Open(cfg.CachePath())
				if err != nil {
					return err
				}
				defer c.Close()
				b.cache = c
			}

			reports, err := b.run(cmd.Context())
			for _, r := range reports {
				r.print(cmd.OutOrStdout())
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "C", ".", "Directory to search for "+config.FileName)
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Ignore and do not update the match cache")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "Images patched concurrently (0 means one per image)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Match and patch in memory without writing images")
	return cmd
}

// batch patches each configured image with each configured template. Every
// image owns its universe, so images are patched concurrently.
type batch struct {
	cfg    *config.Config
	cache  *cache.Cache
	jobs   int
	dryRun bool
}

// outcome of one template against one image
type outcome int

const (
	outcomeNoMatch outcome = iota
	outcomeApplied
)

type patchResult struct {
	template string
	outcome  outcome
	cached   bool
	bindings *scope.Snapshot
}

type report struct {
	image   string
	output  string
	results []patchResult
}

func (b *batch) run(ctx context.Context) ([]*report, error) {
	images := b.cfg.ImagePaths()
	if len(images) == 0 {
		return nil, errors.New("no input images configured")
	}
	templates, err := b.loadTemplates()
	if err != nil {
		return nil, err
	}

	reports := make([]*report, len(images))
	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	// A failed image does not stop the others; their errors are collected.
	g := new(errgroup.Group)
	if b.jobs > 0 {
		g.SetLimit(b.jobs)
	}
	for i, path := range images {
		i, path := i, path
		g.Go(func() error {
			r, err := b.patchImage(ctx, path, templates)
			reports[i] = r
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", path, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	out := reports[:0]
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, errs.ErrorOrNil()
}

func (b *batch) loadTemplates() ([]*template, error) {
	paths, err := b.cfg.PatchPaths()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no templates found")
	}
	var (
		out  []*template
		errs *multierror.Error
	)
	for _, p := range paths {
		t, err := loadTemplate(p)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		out = append(out, t)
	}
	return out, errs.ErrorOrNil()
}

func (b *batch) patchImage(ctx context.Context, path string, templates []*template) (*report, error) {
	img, err := loadImage(path, b.cfg.LibraryPaths())
	if err != nil {
		return nil, err
	}
	sess := engine.NewSession(img.classes, engine.WithMaxSteps(b.cfg.Match.MaxSteps))
	r := &report{image: path, output: b.cfg.OutputPath(path)}

	for _, t := range templates {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		res, err := b.patchOne(sess, img, t)
		if err != nil {
			return r, fmt.Errorf("%s: %w", t.path, err)
		}
		r.results = append(r.results, res)
	}

	if b.dryRun {
		r.output = ""
		return r, nil
	}
	if err := os.MkdirAll(filepath.Dir(r.output), 0755); err != nil {
		return r, fmt.Errorf("creating output dir: %w", err)
	}
	if err := img.save(r.output); err != nil {
		return r, fmt.Errorf("writing %s: %w", r.output, err)
	}
	log.Infof("wrote %s", r.output)
	return r, nil
}

// patchOne applies t to the current universe. A cached match for the same
// universe and template skips the search.
func (b *batch) patchOne(sess *engine.Session, img *image, t *template) (patchResult, error) {
	res := patchResult{template: t.path}

	var key cache.Key
	if b.cache != nil {
		d, err := img.digest()
		if err != nil {
			return res, err
		}
		key = cache.Key{Universe: d, Template: t.digest}
		if hit, ok := b.fromCache(sess, key, t); ok {
			hit.template = t.path
			return hit, nil
		}
	}

	m, err := sess.Match(t.classes)
	if err != nil {
		return res, err
	}
	if !m.Matched() {
		log.Infof("%s: %s does not apply", img.path, t.path)
		if b.cache != nil {
			if err := b.cache.Put(key, nil); err != nil {
				log.Errorf("%s", err)
			}
		}
		return res, nil
	}

	res.bindings = m.Scope().Snapshot()
	if _, err := sess.Apply(t.classes, m.Scope()); err != nil {
		return res, err
	}
	res.outcome = outcomeApplied
	log.Infof("%s: applied %s %s", img.path, t.path, m.Scope())

	if b.cache != nil {
		if err := b.cache.Put(key, res.bindings); err != nil {
			log.Errorf("%s", err)
		}
	}
	return res, nil
}

// fromCache replays a cached result. Entries that no longer restore against
// the universe are dropped and reported as misses.
func (b *batch) fromCache(sess *engine.Session, key cache.Key, t *template) (patchResult, bool) {
	e, err := b.cache.Get(key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			log.Errorf("%s", err)
		}
		return patchResult{}, false
	}
	if !e.Matched() {
		log.Debugf("cache hit %s: no match", key)
		return patchResult{cached: true}, true
	}

	sc, err := scope.Restore(sess.Classes, e.Snapshot)
	if err == nil {
		_, err = sess.Apply(t.classes, sc)
	}
	if err != nil {
		log.Warningf("discarding cache entry %s: %s", key, err)
		if err := b.cache.Delete(key); err != nil {
			log.Errorf("%s", err)
		}
		return patchResult{}, false
	}
	log.Debugf("cache hit %s", key)
	return patchResult{outcome: outcomeApplied, cached: true, bindings: e.Snapshot}, true
}
