package idp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/platinummonkey/ingresso/pkg/observability"
)

// Loader fetches a federation metadata document and reduces it to the
// whitelisted descriptors, remapped to their local keys.
type Loader struct {
	httpClient *http.Client
	logger     *observability.Logger
}

// NewLoader creates a Loader. A nil client gets a 30 second timeout default.
func NewLoader(client *http.Client, logger *observability.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{httpClient: client, logger: logger}
}

// Load fetches url, parses it and keeps only the entities whose entityID
// appears in whitelist (entityID -> local key). Malformed entities and
// whitelist shortfalls are warnings, never errors: only fetch and
// document-level failures abort the load.
func (l *Loader) Load(ctx context.Context, url string, whitelist map[string]string) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrMetadata, err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrMetadata, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: HTTP %d", ErrMetadata, url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrMetadata, err)
	}

	descriptors, skipped, err := ParseMetadata(data)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		l.logger.WithFields(map[string]interface{}{
			"entity_id": s.EntityID,
			"reason":    s.Reason,
		}).Warn("Skipping malformed IdP entity")
	}

	snapshot := make(Snapshot, len(whitelist))
	for _, d := range descriptors {
		key, ok := whitelist[d.EntityID]
		if !ok {
			l.logger.WithField("entity_id", d.EntityID).Debug("Ignoring IdP not in whitelist")
			continue
		}
		snapshot[key] = d
	}

	if missing := len(whitelist) - len(snapshot); missing > 0 {
		l.logger.WithFields(map[string]interface{}{
			"expected": len(whitelist),
			"found":    len(snapshot),
		}).Warnf("Metadata shortfall: %d whitelisted IdPs missing from document", missing)
	}

	return snapshot, nil
}
