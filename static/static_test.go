//go:build !dashboard

package static

import (
	"errors"
	"testing"
)

func TestDashboardFS_NotEmbedded(t *testing.T) {
	fsys, err := DashboardFS()
	if !errors.Is(err, ErrNotEmbedded) {
		t.Errorf("err = %v, want %v", err, ErrNotEmbedded)
	}
	if fsys != nil {
		t.Errorf("fsys = %v, want nil", fsys)
	}
}
