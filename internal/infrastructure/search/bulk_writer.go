package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"movies-etl/internal/domains/document"
	"movies-etl/internal/domains/etl"
	"movies-etl/pkg/logger"
)

// BulkWriter writes documents to the movies index through the _bulk API,
// upserting by movie id. Transient failures (connectivity, 429, 5xx) are
// retried with bounded exponential backoff; schema failures are reported
// unretried so the coordinator can quarantine them.
type BulkWriter struct {
	es         *ElasticClient
	retryMax   int
	retryDelay time.Duration
}

func NewBulkWriter(es *ElasticClient, retryMax int, retryDelay time.Duration) etl.IndexWriter {
	if retryMax <= 0 {
		retryMax = 5
	}
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	return &BulkWriter{
		es:         es,
		retryMax:   retryMax,
		retryDelay: retryDelay,
	}
}

func (w *BulkWriter) WriteBatch(ctx context.Context, docs []document.Movie) (*etl.BatchResult, error) {
	result := &etl.BatchResult{
		Succeeded: make([]uuid.UUID, 0, len(docs)),
		Failed:    make([]etl.DocumentFailure, 0),
	}

	// Pre-validate against the index schema contract; a malformed document
	// never earns an index round-trip.
	pending := make([]document.Movie, 0, len(docs))
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			raw, _ := json.Marshal(doc)
			result.Failed = append(result.Failed, etl.DocumentFailure{
				MovieID:   doc.ID,
				Reason:    fmt.Sprintf("validation: %v", err),
				Transient: false,
				Document:  raw,
			})
			continue
		}
		pending = append(pending, doc)
	}

	delay := w.retryDelay
	for attempt := 1; len(pending) > 0; attempt++ {
		succeeded, retryable, invalid, err := w.bulk(ctx, pending)

		result.Succeeded = append(result.Succeeded, succeeded...)
		result.Failed = append(result.Failed, invalid...)
		pending = retryable

		if len(pending) == 0 {
			break
		}
		if attempt >= w.retryMax {
			reason := "bulk retries exhausted"
			if err != nil {
				reason = fmt.Sprintf("%s: %v", reason, err)
			}
			for _, doc := range pending {
				result.Failed = append(result.Failed, etl.DocumentFailure{
					MovieID:   doc.ID,
					Reason:    reason,
					Transient: true,
				})
			}
			break
		}

		logger.Warn(fmt.Sprintf("bulk write attempt %d/%d left %d documents pending, retrying in %v",
			attempt, w.retryMax, len(pending), delay), err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			for _, doc := range pending {
				result.Failed = append(result.Failed, etl.DocumentFailure{
					MovieID:   doc.ID,
					Reason:    fmt.Sprintf("cycle aborted: %v", ctx.Err()),
					Transient: true,
				})
			}
			return result, nil
		}
		delay *= 2
	}

	return result, nil
}

type bulkItem struct {
	Index struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool       `json:"errors"`
	Items  []bulkItem `json:"items"`
}

// bulk performs one _bulk round-trip and splits the documents into
// succeeded, retryable and invalid. A transport-level failure leaves every
// document retryable.
func (w *BulkWriter) bulk(ctx context.Context, docs []document.Movie) (
	succeeded []uuid.UUID,
	retryable []document.Movie,
	invalid []etl.DocumentFailure,
	err error,
) {
	var buf bytes.Buffer
	sent := make([]document.Movie, 0, len(docs))
	for _, doc := range docs {
		body, merr := json.Marshal(doc)
		if merr != nil {
			// Unreachable for this document shape, but a marshal failure is
			// a document problem, not an index problem.
			invalid = append(invalid, etl.DocumentFailure{
				MovieID:   doc.ID,
				Reason:    fmt.Sprintf("marshal: %v", merr),
				Transient: false,
			})
			continue
		}
		fmt.Fprintf(&buf, `{"index":{"_index":%q,"_id":%q}}`, w.es.Index, doc.ID.String())
		buf.WriteByte('\n')
		buf.Write(body)
		buf.WriteByte('\n')
		sent = append(sent, doc)
	}
	docs = sent

	res, err := w.es.Client.Bulk(
		bytes.NewReader(buf.Bytes()),
		w.es.Client.Bulk.WithContext(ctx),
		w.es.Client.Bulk.WithFilterPath("errors", "items.*._id", "items.*.status", "items.*.error"),
	)
	if err != nil {
		return nil, docs, invalid, fmt.Errorf("%w: %v", etl.ErrIndexUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
			return nil, docs, invalid, fmt.Errorf("%w: bulk returned %s", etl.ErrIndexUnavailable, res.Status())
		}
		// Whole-request rejection (malformed bulk body): nothing to retry.
		for _, doc := range docs {
			raw, _ := json.Marshal(doc)
			invalid = append(invalid, etl.DocumentFailure{
				MovieID:   doc.ID,
				Reason:    fmt.Sprintf("bulk rejected: %s", res.Status()),
				Transient: false,
				Document:  raw,
			})
		}
		return nil, nil, invalid, nil
	}

	var parsed bulkResponse
	if derr := json.NewDecoder(res.Body).Decode(&parsed); derr != nil {
		return nil, docs, invalid, fmt.Errorf("failed to decode bulk response: %w", derr)
	}
	if len(parsed.Items) != len(docs) {
		return nil, docs, invalid, fmt.Errorf("bulk response item count mismatch: got %d, want %d",
			len(parsed.Items), len(docs))
	}

	// Items are positional with the request body.
	for i, item := range parsed.Items {
		status := item.Index.Status
		switch {
		case status >= 200 && status < 300:
			succeeded = append(succeeded, docs[i].ID)
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			retryable = append(retryable, docs[i])
		default:
			reason := fmt.Sprintf("indexing rejected with status %d", status)
			if item.Index.Error != nil {
				reason = fmt.Sprintf("%s: %s", item.Index.Error.Type, item.Index.Error.Reason)
			}
			raw, _ := json.Marshal(docs[i])
			invalid = append(invalid, etl.DocumentFailure{
				MovieID:   docs[i].ID,
				Reason:    reason,
				Transient: false,
				Document:  raw,
			})
		}
	}

	return succeeded, retryable, invalid, nil
}
