package drivers

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/raido/internal/fetch"
	"github.com/starford/raido/internal/registry"
)

// derefMarker flags pre-dereferenced/expanded document copies that must not
// be independently ingested.
const derefMarker = "deref"

// Github downloads a repository tarball into a per-provider cache
// directory, glob-walks it for matching files, and registers one lead per
// match pointing at the raw-content URL. Service names derive from each
// file's path after configurable shift/pop stripping, then either a
// regex-capture rewrite or a literal split-prefix strip.
type Github struct {
	client *fetch.Client
	logger *slog.Logger
}

func (d *Github) Name() string { return registry.DriverGithub }

func (d *Github) Run(ctx context.Context, provider string, p *registry.Provider, sink Sink) (bool, error) {
	cfg := p.Config
	if cfg == nil || cfg.Org == "" || cfg.Repo == "" {
		return false, fmt.Errorf("github: provider %s missing org/repo config", provider)
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	tarURL := fmt.Sprintf("https://github.com/%s/%s/archive/refs/heads/%s.tar.gz", cfg.Org, cfg.Repo, branch)
	archive, err := d.client.Download(ctx, tarURL, provider+".tar.gz")
	if err != nil {
		d.logger.Warn("github: tarball download failed",
			slog.String("provider", provider), slog.String("error", err.Error()))
		return false, nil
	}

	dest := filepath.Join(filepath.Dir(archive), provider)
	if err := extractTarGz(archive, dest); err != nil {
		return false, fmt.Errorf("github: extract %s: %w", archive, err)
	}

	err = filepath.WalkDir(dest, func(fp string, de fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if de.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(dest, fp)
		rel = filepath.ToSlash(rel)
		// Tarballs nest everything under <repo>-<branch>/.
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			rel = rel[i+1:]
		}
		if rel == "" || strings.Contains(rel, derefMarker) {
			return nil
		}
		if !globMatch(cfg.Glob, rel) {
			return nil
		}
		rawURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", cfg.Org, cfg.Repo, branch, rel)
		sink.AddLead(rawURL, &registry.Lead{
			Service:  deriveService(cfg, rel),
			Provider: provider,
			File:     fp,
		})
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("github: walk %s: %w", dest, err)
	}
	return true, nil
}

// deriveService turns a repo-relative file path into a service name.
func deriveService(cfg *registry.DriverConfig, rel string) string {
	segs := strings.Split(rel, "/")
	if cfg.Shift > 0 && cfg.Shift < len(segs) {
		segs = segs[cfg.Shift:]
	}
	if cfg.Pop > 0 && cfg.Pop < len(segs) {
		segs = segs[:len(segs)-cfg.Pop]
	}
	base := segs[len(segs)-1]
	base = strings.TrimSuffix(base, path.Ext(base))

	if cfg.Rewrite != "" {
		if re, err := regexp.Compile(cfg.Rewrite); err == nil {
			if m := re.FindStringSubmatch(base); len(m) > 1 {
				return m[1]
			}
		}
	}
	if cfg.Split != "" {
		if _, after, found := strings.Cut(base, cfg.Split); found {
			return after
		}
	}
	return base
}

// globMatch matches a slash path against a pattern where "**" spans any
// number of segments and single segments match with path.Match semantics.
func globMatch(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	return segMatch(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func segMatch(pat, segs []string) bool {
	if len(pat) == 0 {
		return len(segs) == 0
	}
	if pat[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if segMatch(pat[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pat[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return segMatch(pat[1:], segs[1:])
}

// extractTarGz unpacks a .tar.gz archive under dest, refusing entries that
// would escape it.
func extractTarGz(archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target := filepath.Join(dest, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("entry escapes destination: %s", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil { //nolint:gosec // local cache extraction
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}
