package federation

import (
	"time"

	"github.com/okanezen/newshub/federation/internal/provider"
	"github.com/okanezen/newshub/federation/internal/store"
)

// SearchRequest is a federated-search call.
type SearchRequest struct {
	Query string `json:"query"`
	// Provider forces a specific backend; empty means the configured default.
	Provider   string   `json:"provider,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
	TimeRange  string   `json:"time_range,omitempty"`
	Language   string   `json:"language,omitempty"`
	SafeSearch int      `json:"safe_search,omitempty"`
	Engines    []string `json:"engines,omitempty"`
}

// SearchResult is one external hit as exposed by the API.
type SearchResult struct {
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content,omitempty"`
	Score       float64        `json:"score,omitempty"`
	SourceName  string         `json:"source_name,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Provider    string         `json:"provider"`
	Engine      string         `json:"engine,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SearchResponse is the outcome of a federated search. SessionID is set
// only when the search produced results worth ingesting later.
type SearchResponse struct {
	SessionID    string         `json:"session_id,omitempty"`
	Query        string         `json:"query"`
	ProviderUsed string         `json:"provider_used"`
	FallbackUsed bool           `json:"fallback_used"`
	Results      []SearchResult `json:"results"`
}

// AugmentedSearchRequest blends the user's stored items with live external
// results.
type AugmentedSearchRequest struct {
	Query           string `json:"query"`
	Provider        string `json:"provider,omitempty"`
	MaxResults      int    `json:"max_results,omitempty"`
	IncludeExternal bool   `json:"include_external"`
	// AutoPersist queues an ingestion of the external results immediately.
	AutoPersist bool   `json:"auto_persist,omitempty"`
	PersistMode string `json:"persist_mode,omitempty"`
}

// AugmentedItem is one fused hit. Origin says which side contributed it;
// internal hits carry the stored item's ID.
type AugmentedItem struct {
	SearchResult
	Origin   string  `json:"origin"`
	NewsID   string  `json:"news_id,omitempty"`
	RRFScore float64 `json:"rrf_score"`
}

type AugmentedSearchResponse struct {
	Query         string          `json:"query"`
	Results       []AugmentedItem `json:"results"`
	InternalCount int             `json:"internal_count"`
	ExternalCount int             `json:"external_count"`
	ProviderUsed  string          `json:"provider_used,omitempty"`
	FallbackUsed  bool            `json:"fallback_used"`
	SessionID     string          `json:"session_id,omitempty"`
	IngestJobID   string          `json:"ingest_job_id,omitempty"`
}

// IngestRequest queues ingestion of results from a prior search session.
// An empty SelectedURLs selects the whole session.
type IngestRequest struct {
	SessionID    string   `json:"session_id"`
	SelectedURLs []string `json:"selected_urls,omitempty"`
	PersistMode  string   `json:"persist_mode,omitempty"`
}

// IngestReceipt acknowledges a queued job.
type IngestReceipt struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	QueuedCount int    `json:"queued_count"`
}

// IngestJob is the externally visible job record. Counters are absolute
// snapshots; processed == stored + failed + duplicates at all times.
type IngestJob struct {
	ID             string   `json:"id"`
	SessionID      string   `json:"session_id"`
	Provider       string   `json:"provider"`
	Status         string   `json:"status"`
	PersistMode    string   `json:"persist_mode"`
	TotalItems     int      `json:"total_items"`
	ProcessedItems int      `json:"processed_items"`
	StoredItems    int      `json:"stored_items"`
	FailedItems    int      `json:"failed_items"`
	DuplicateItems int      `json:"duplicate_items"`
	RetryCount     int      `json:"retry_count"`
	AverageQuality float64  `json:"average_quality"`
	FailedURLs     []string `json:"failed_urls"`
	ErrorMessage   string   `json:"error_message,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// VirtualSource is the per-provider synthetic source external results are
// filed under.
type VirtualSource struct {
	ID        string `json:"id"`
	Provider  string `json:"provider"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	ItemCount int    `json:"item_count"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// SearchLogEntry is one recorded search.
type SearchLogEntry struct {
	ID           string `json:"id"`
	Query        string `json:"query"`
	ProviderUsed string `json:"provider_used"`
	ResultCount  int    `json:"result_count"`
	SearchedAt   int64  `json:"searched_at"`
}

// ProviderOptions describes one provider's capabilities.
type ProviderOptions struct {
	Provider          string   `json:"provider"`
	Available         bool     `json:"available"`
	SupportsEngines   bool     `json:"supports_engines"`
	SupportsTimeRange bool     `json:"supports_time_range"`
	SupportsLanguage  bool     `json:"supports_language"`
	Engines           []string `json:"engines,omitempty"`
	Languages         []string `json:"languages,omitempty"`
	TimeRanges        []string `json:"time_ranges,omitempty"`
}

// ProviderHealth is the outcome of one provider probe.
type ProviderHealth struct {
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
	Healthy   bool   `json:"healthy"`
	LatencyMS int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}

func fromProviderResult(r provider.Result) SearchResult {
	return SearchResult{
		Title:       r.Title,
		URL:         r.URL,
		Description: r.Description,
		Content:     r.Content,
		Score:       r.Score,
		SourceName:  r.SourceName,
		PublishedAt: r.PublishedAt,
		Provider:    r.Provider,
		Engine:      r.Engine,
		Metadata:    r.Metadata,
	}
}

func fromProviderResults(rs []provider.Result) []SearchResult {
	out := make([]SearchResult, len(rs))
	for i, r := range rs {
		out[i] = fromProviderResult(r)
	}
	return out
}

func fromStoreJob(j *store.IngestJob) *IngestJob {
	return &IngestJob{
		ID:             j.ID,
		SessionID:      j.SessionID,
		Provider:       j.Provider,
		Status:         j.Status,
		PersistMode:    j.PersistMode,
		TotalItems:     j.TotalItems,
		ProcessedItems: j.ProcessedItems,
		StoredItems:    j.StoredItems,
		FailedItems:    j.FailedItems,
		DuplicateItems: j.DuplicateItems,
		RetryCount:     j.RetryCount,
		AverageQuality: j.AverageQuality,
		FailedURLs:     j.FailedURLs,
		ErrorMessage:   j.ErrorMessage,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func fromStoreSource(v store.VirtualSource) VirtualSource {
	return VirtualSource{
		ID:        v.ID,
		Provider:  v.Provider,
		Name:      v.Name,
		URL:       v.URL,
		ItemCount: v.ItemCount,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}
