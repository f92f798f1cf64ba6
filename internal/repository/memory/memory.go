package memory

import (
	"invoice_router/internal/repository"
)

var (
	_ repository.OrgDirectory    = (*Directory)(nil)
	_ repository.CursorStore     = (*CursorStore)(nil)
	_ repository.GraphRepository = (*GraphRepository)(nil)
)
