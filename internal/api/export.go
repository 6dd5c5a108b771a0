// ABOUTME: Export operation streaming every matching row into a CSV or JSON file
// ABOUTME: Rows are fetched in batches so memory stays flat regardless of table size

package api

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
	"github.com/2389/modeladmin/internal/export"
)

// ExportResult is a prepared export. Validation, authorization and the
// first batch happen before it is returned, so failures still map to a
// status code; Write streams the file.
type ExportResult struct {
	FileName    string
	ContentType string

	svc    *Service
	d      *admin.Descriptor
	query  admin.ListQuery
	fields []string
	format export.Format
	first  []admin.Row
	user   *admin.User
}

// Export prepares a file of every row matching the search, sort and
// filter params. List paging params are ignored.
func (s *Service) Export(ctx context.Context, sessionID, model string, params url.Values, req ExportRequest) (*ExportResult, error) {
	ctx, user, d, err := s.begin(ctx, sessionID, model, admin.OpExport, admin.Target{})
	if err != nil {
		return nil, err
	}
	format, ok := export.Lookup(req.Format)
	if !ok {
		return nil, apierr.Validationf("unsupported export format %q", req.Format)
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = d.DisplayFields()
	}
	for _, name := range fields {
		f, ok := d.Field(name)
		if !ok || !d.Serializable(f) {
			return nil, apierr.Validationf("cannot export field %q", name)
		}
	}

	exportParams := url.Values{}
	for k, v := range params {
		if k != ParamOffset && k != ParamLimit {
			exportParams[k] = v
		}
	}
	q, err := s.listQuery(d, exportParams, false)
	if err != nil {
		return nil, err
	}
	q.Limit = s.cfg.ExportBatchSize

	first, _, err := d.Adapter.List(ctx, q)
	if err != nil {
		return nil, s.fail(ctx, "export", err)
	}

	return &ExportResult{
		FileName:    export.FileName(d.Name, format),
		ContentType: format.ContentType(),
		svc:         s,
		d:           d,
		query:       q,
		fields:      fields,
		format:      format,
		first:       first,
		user:        user,
	}, nil
}

// Write streams the export to w. It stops when ctx is cancelled.
func (r *ExportResult) Write(ctx context.Context, w io.Writer) error {
	ctx = admin.WithUser(ctx, r.user)
	out, err := r.format.NewWriter(w, r.fields)
	if err != nil {
		return err
	}

	batch := r.first
	q := r.query
	written := 0
	for {
		for _, row := range batch {
			if err := out.WriteRow(r.d.SerializeFields(row, r.fields)); err != nil {
				return fmt.Errorf("writing export row: %w", err)
			}
		}
		written += len(batch)
		if len(batch) < q.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		q.Offset += q.Limit
		batch, _, err = r.d.Adapter.List(ctx, q)
		if err != nil {
			r.svc.logger.Error("export batch failed", "model", r.d.Name, "offset", q.Offset, "error", err)
			return fmt.Errorf("loading export batch: %w", err)
		}
	}
	if err := out.Close(); err != nil {
		return err
	}
	r.svc.logger.Info("export finished", "model", r.d.Name, "format", r.format.Name(), "rows", written)
	return nil
}
