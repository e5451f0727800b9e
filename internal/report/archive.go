package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

const (
	contentTypeJSON  = "application/json"
	contentTypeJSONL = "application/x-ndjson"

	// Payloads above this size go through the multipart uploader.
	defaultMultipartThreshold = 8 << 20
	defaultPartSize           = 8 << 20
)

// Archiver writes the artifacts of a scan session to a BlobWriter:
//
//	<prefix>/YYYY/MM/DD/<session>/session.json
//	<prefix>/YYYY/MM/DD/<session>/opportunities.jsonl
//	<prefix>/YYYY/MM/DD/<session>/markets-<platform>.jsonl
type Archiver struct {
	w         domain.BlobWriter
	prefix    string
	threshold int
	partSize  int64
}

// ArchiverOption customizes an Archiver.
type ArchiverOption func(*Archiver)

// WithMultipart sets the size above which uploads use PutMultipart and the
// part size passed to it. Non-positive values keep the defaults.
func WithMultipart(threshold int, partSize int64) ArchiverOption {
	return func(a *Archiver) {
		if threshold > 0 {
			a.threshold = threshold
		}
		if partSize > 0 {
			a.partSize = partSize
		}
	}
}

func NewArchiver(w domain.BlobWriter, prefix string, opts ...ArchiverOption) *Archiver {
	a := &Archiver{
		w:         w,
		prefix:    prefix,
		threshold: defaultMultipartThreshold,
		partSize:  defaultPartSize,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// SessionDir returns the directory under which a session is archived.
func (a *Archiver) SessionDir(sess domain.ScanSession) string {
	return path.Join(a.prefix, sess.StartedAt.UTC().Format("2006/01/02"), sess.ID)
}

// Archive uploads the session summary, its opportunities and the markets
// fetched per platform. It returns the paths written.
func (a *Archiver) Archive(ctx context.Context, sess domain.ScanSession, markets map[domain.Platform][]domain.Market) ([]string, error) {
	dir := a.SessionDir(sess)
	var written []string

	summary := sess
	summary.Opportunities = nil
	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return written, fmt.Errorf("report: encode session: %w", err)
	}
	p := path.Join(dir, "session.json")
	if err := a.put(ctx, p, body, contentTypeJSON); err != nil {
		return written, err
	}
	written = append(written, p)

	if len(sess.Opportunities) > 0 {
		body, err := marshalJSONL(sess.Opportunities)
		if err != nil {
			return written, fmt.Errorf("report: encode opportunities: %w", err)
		}
		p := path.Join(dir, "opportunities.jsonl")
		if err := a.put(ctx, p, body, contentTypeJSONL); err != nil {
			return written, err
		}
		written = append(written, p)
	}

	for _, platform := range []domain.Platform{domain.PlatformKalshi, domain.PlatformPolymarket} {
		ms := markets[platform]
		if len(ms) == 0 {
			continue
		}
		body, err := marshalJSONL(ms)
		if err != nil {
			return written, fmt.Errorf("report: encode %s markets: %w", platform, err)
		}
		p := path.Join(dir, "markets-"+string(platform)+".jsonl")
		if err := a.put(ctx, p, body, contentTypeJSONL); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

func (a *Archiver) put(ctx context.Context, p string, body []byte, contentType string) error {
	var err error
	if a.threshold > 0 && len(body) > a.threshold {
		err = a.w.PutMultipart(ctx, p, bytes.NewReader(body), a.partSize)
	} else {
		err = a.w.Put(ctx, p, bytes.NewReader(body), contentType)
	}
	if err != nil {
		return fmt.Errorf("report: upload %s: %w", p, err)
	}
	return nil
}

// marshalJSONL encodes one JSON document per line.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
