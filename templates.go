package exprender

import (
	"io/fs"

	"github.com/goliatone/go-exprender/pkg/dialect"
)

// EmbeddedTemplates exposes the built-in html dialect templates so callers
// can reuse or extend them without importing the dialect package directly.
func EmbeddedTemplates() fs.FS {
	return dialect.TemplatesFS()
}
