package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FetchPanel downloads the panel release archive and unpacks it into the
// application root. The download is verified before extraction starts; a
// failed download halts the run with the old tree untouched.
func (im *InstallationManager) FetchPanel(ctx context.Context) error {
	if err := os.MkdirAll(im.paths.AppDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", im.paths.AppDir, err)
	}

	archive := filepath.Join(os.TempDir(), "panel.tar.gz")
	im.logger.Info().Str("url", im.panelArchiveURL).Msg("downloading panel release")
	if err := im.download(ctx, im.panelArchiveURL, archive, 0644); err != nil {
		return err
	}
	defer os.Remove(archive)

	if err := im.runner.Run(ctx, "tar", "-xzf", archive, "-C", im.paths.AppDir); err != nil {
		return fmt.Errorf("extract panel archive: %w", err)
	}

	if err := flattenNested(im.paths.AppDir); err != nil {
		return fmt.Errorf("normalize panel tree: %w", err)
	}

	for _, dir := range []string{"storage", "bootstrap/cache"} {
		if err := im.runner.Run(ctx, "chmod", "-R", "755", filepath.Join(im.paths.AppDir, dir)); err != nil {
			im.logger.Debug().Err(err).Str("dir", dir).Msg("chmod skipped")
		}
	}

	return im.chownAppDir(ctx)
}

// flattenNested handles archives whose entries sit one directory deeper
// than the install root: a single top-level directory gets its contents
// moved up and is then removed.
func flattenNested(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	nested := filepath.Join(root, entries[0].Name())
	children, err := os.ReadDir(nested)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := os.Rename(filepath.Join(nested, child.Name()), filepath.Join(root, child.Name())); err != nil {
			return fmt.Errorf("move %s: %w", child.Name(), err)
		}
	}
	return os.Remove(nested)
}
