// Package domain contains the core entities shared across the ingestion,
// reconciliation, and reporting layers. Types here carry no behavior beyond
// validation and derived-value helpers; persistence lives in
// internal/repository and business flows in internal/ingest,
// internal/reconciler, and internal/report.
package domain
