//go:build dashboard

package static

import (
	"embed"
	"io/fs"
)

// dashboardDistFS embeds the built dashboard SPA.
// The dist directory must be copied to static/dist before building with
// -tags dashboard.
//
//go:embed all:dist
var dashboardDistFS embed.FS

// DashboardFS returns the embedded dashboard filesystem.
// The returned FS has the "dist" prefix stripped.
func DashboardFS() (fs.FS, error) {
	return fs.Sub(dashboardDistFS, "dist")
}
