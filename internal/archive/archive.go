// Package archive optionally mirrors every upstream-accepted block
// submission to Azure Blob Storage for audit/replay, via
// github.com/Azure/azure-storage-blob-go. No-op when unconfigured
// (spec.md's share-accounting/payout subsystem stays external; this is
// just a durable copy of what the coordinator itself submitted).
package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/ironforge-pool/poolcoordinator/internal/log"
)

// Archiver uploads accepted block submissions to a container. The zero
// value (nil *Archiver) is valid and a no-op, so callers needn't branch on
// "configured or not".
type Archiver struct {
	container azblob.ContainerURL
	log       *log.Logger
}

// New parses connString ("AccountName=...;AccountKey=...;Container=...")
// and returns an Archiver targeting that container. Returns (nil, nil)
// when connString is empty: archiving is optional.
func New(connString string) (*Archiver, error) {
	if connString == "" {
		return nil, nil
	}
	fields := parseConnString(connString)
	account, key, container := fields["AccountName"], fields["AccountKey"], fields["Container"]
	if account == "" || key == "" || container == "" {
		return nil, fmt.Errorf("archive: connection string missing AccountName/AccountKey/Container")
	}

	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("archive: building credential: %w", err)
	}
	pipeline := azblob.NewPipeline(cred, azblob.PipelineOptions{})

	u, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", account, container))
	if err != nil {
		return nil, fmt.Errorf("archive: building container URL: %w", err)
	}

	return &Archiver{
		container: azblob.NewContainerURL(*u, pipeline),
		log:       log.New("component", "archive"),
	}, nil
}

func parseConnString(s string) map[string]string {
	out := make(map[string]string)
	for _, kv := range strings.Split(s, ";") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			out[parts[0]] = parts[1]
		}
	}
	return out
}

// StoreBlock uploads the raw accepted block bytes under a
// timestamp-and-digest-derived blob name. Failures are logged, not
// returned: archiving is best-effort and must never affect the
// submission-handling pipeline's own disposition.
func (a *Archiver) StoreBlock(ctx context.Context, digestHex string, raw []byte) {
	if a == nil {
		return
	}
	name := fmt.Sprintf("%d-%s.bin", time.Now().UnixMilli(), digestHex)
	blob := a.container.NewBlockBlobURL(name)

	if _, err := blob.Upload(ctx, bytes.NewReader(raw), azblob.BlobHTTPHeaders{}, azblob.Metadata{}, azblob.BlobAccessConditions{}); err != nil {
		a.log.Warn("archive: uploading block", "digest", digestHex, "err", err)
	}
}
