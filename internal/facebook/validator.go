// Package facebook handles the manual upload path: a client exports a
// CSV from Ads Manager and posts it through the API. Parsing is
// synchronous; the caller gets accepted/rejected counts in the response.
package facebook

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ignite/paidmedia-monitor/internal/config"
)

// ValidateFile checks the upload's name and size against the configured
// constraints before any parsing happens.
func ValidateFile(cfg config.UploadConfig, filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, a := range cfg.AllowedExtensions {
		if ext == strings.ToLower(a) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("unsupported file type %q, allowed: %s", ext, strings.Join(cfg.AllowedExtensions, ", "))
	}
	if size > cfg.MaxSizeBytes {
		return fmt.Errorf("file too large: %d bytes (limit %d)", size, cfg.MaxSizeBytes)
	}
	return nil
}
