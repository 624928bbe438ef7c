//go:build !dashboard

package static

import "io/fs"

// DashboardFS reports ErrNotEmbedded; build with -tags dashboard to embed
// the SPA, or point DASHBOARD_DIR at a build on disk.
func DashboardFS() (fs.FS, error) {
	return nil, ErrNotEmbedded
}
