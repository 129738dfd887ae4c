// Package metrics exposes Prometheus collectors for the mirror service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal        prometheus.Counter
	fetchRetriesTotal        prometheus.Counter
	messagesUpsertedTotal    prometheus.Counter
	recordsSkippedTotal      prometheus.Counter
	attachmentsIngestedTotal prometheus.Counter
	attachmentsDedupedTotal  prometheus.Counter
	attachmentsOversizeTotal prometheus.Counter
	syncPassesTotal          *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirror_pages_fetched_total",
			Help: "Total feed pages fetched successfully.",
		})
		fetchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirror_fetch_retries_total",
			Help: "Total retry attempts caused by transient upstream statuses.",
		})
		messagesUpsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirror_messages_upserted_total",
			Help: "Total messages inserted or updated.",
		})
		recordsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirror_records_skipped_total",
			Help: "Total records skipped for empty text or per-record errors.",
		})
		attachmentsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirror_attachments_ingested_total",
			Help: "Total attachments uploaded to object storage.",
		})
		attachmentsDedupedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirror_attachments_deduped_total",
			Help: "Total ingestion calls resolved by the source-URL dedup check.",
		})
		attachmentsOversizeTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirror_attachments_oversize_total",
			Help: "Total attachments rejected by the size gate.",
		})
		syncPassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_sync_passes_total",
			Help: "Total sync passes by outcome.",
		}, []string{"outcome"})
	})
}

// RecordPageFetched counts one successfully fetched feed page.
func RecordPageFetched() {
	if pagesFetchedTotal != nil {
		pagesFetchedTotal.Inc()
	}
}

// RecordFetchRetry counts one backoff-and-retry cycle.
func RecordFetchRetry() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// RecordMessageUpserted counts one persisted message.
func RecordMessageUpserted() {
	if messagesUpsertedTotal != nil {
		messagesUpsertedTotal.Inc()
	}
}

// RecordRecordSkipped counts one skipped record.
func RecordRecordSkipped() {
	if recordsSkippedTotal != nil {
		recordsSkippedTotal.Inc()
	}
}

// RecordAttachmentIngested counts one uploaded attachment.
func RecordAttachmentIngested() {
	if attachmentsIngestedTotal != nil {
		attachmentsIngestedTotal.Inc()
	}
}

// RecordAttachmentDeduped counts one dedup hit.
func RecordAttachmentDeduped() {
	if attachmentsDedupedTotal != nil {
		attachmentsDedupedTotal.Inc()
	}
}

// RecordAttachmentOversize counts one size-gate rejection.
func RecordAttachmentOversize() {
	if attachmentsOversizeTotal != nil {
		attachmentsOversizeTotal.Inc()
	}
}

// RecordSyncPass counts a finished pass with its outcome label
// ("completed" or "failed").
func RecordSyncPass(outcome string) {
	if syncPassesTotal != nil {
		syncPassesTotal.WithLabelValues(outcome).Inc()
	}
}
