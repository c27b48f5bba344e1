// Package discovery finds gazette editions and hands them to the processor.
package discovery

import (
	"context"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

// DocumentProcessor scans one document against the watch-list.
type DocumentProcessor interface {
	Process(ctx context.Context, source string, doc gazette.Document, history gazette.HistorySet) gazette.Scan
}
