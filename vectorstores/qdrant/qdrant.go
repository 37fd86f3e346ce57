// Package qdrant implements vectorstores.VectorStore on the Qdrant gRPC API.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sevigo/sourceqa/embeddings"
	"github.com/sevigo/sourceqa/schema"
	"github.com/sevigo/sourceqa/vectorstores"
)

var (
	ErrMissingEmbedder       = errors.New("qdrant: embedder is required but not provided")
	ErrMissingCollectionName = errors.New("qdrant: collection name is required")
	ErrInvalidNumDocuments   = errors.New("qdrant: number of documents must be positive")
	ErrInvalidURL            = errors.New("qdrant: invalid URL provided")
	ErrCollectionExists      = errors.New("qdrant: collection already exists")
	ErrEmptyFilter           = errors.New("qdrant: cannot delete with an empty filter")
	ErrUnsupportedFilter     = errors.New("qdrant: unsupported filter value")
)

const (
	DefaultBatchSize      = 100
	MaxBatchSize          = 1000
	DefaultMaxConcurrency = 8
	DefaultRetryAttempts  = 3
	DefaultRetryDelay     = time.Second
	maxRetryDelay         = 30 * time.Second
)

type Store struct {
	client         *qdrant.Client
	embedder       embeddings.Embedder
	collectionName string
	logger         *slog.Logger
	options        options
}

var (
	_ vectorstores.VectorStore       = (*Store)(nil)
	_ vectorstores.CollectionManager = (*Store)(nil)
)

func New(opts ...Option) (*Store, error) {
	storeOptions, err := parseOptions(opts...)
	if err != nil {
		return nil, err
	}
	logger := storeOptions.logger.With("component", "qdrant_store", "collection", storeOptions.collectionName)

	port, _ := storeOptions.port()
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   storeOptions.qdrantURL.Hostname(),
		Port:   port,
		APIKey: storeOptions.apiKey,
		UseTLS: storeOptions.qdrantURL.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	logger.Info("Qdrant store initialized successfully", "config", storeOptions.String())
	return &Store{
		client:         client,
		embedder:       storeOptions.embedder,
		collectionName: storeOptions.collectionName,
		logger:         logger,
		options:        storeOptions,
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) embedderFor(opts vectorstores.Options) (embeddings.Embedder, error) {
	if opts.Embedder != nil {
		return opts.Embedder, nil
	}
	if s.embedder != nil {
		return s.embedder, nil
	}
	return nil, ErrMissingEmbedder
}

// AddDocuments embeds docs, creates the collection on first use and upserts
// the points in concurrent batches. IDs are returned in input order.
func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return []string{}, nil
	}
	start := time.Now()

	opts := vectorstores.ParseOptions(options...)
	embedder, err := s.embedderFor(opts)
	if err != nil {
		return nil, err
	}
	collectionName := s.getCollectionName(opts)

	if err := s.ensureCollection(ctx, collectionName, embedder); err != nil {
		return nil, fmt.Errorf("collection preparation failed: %w", err)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("document embedding stage failed: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	points := make([]*qdrant.PointStruct, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = documentID(doc)
		points[i] = &qdrant.PointStruct{
			Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: ids[i]}},
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: vectors[i]}}},
			Payload: documentToPayload(doc, s.options.contentKey),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.options.maxConcurrency)
	for batch := range slices.Chunk(points, s.options.batchSize) {
		g.Go(func() error {
			return s.upsertWithRetry(gctx, collectionName, batch)
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Document upsert failed", "error", err, "collection", collectionName)
		return nil, err
	}

	s.logger.InfoContext(ctx, "Documents added",
		"collection", collectionName, "count", len(docs), "duration", time.Since(start))
	return ids, nil
}

func (s *Store) upsertWithRetry(ctx context.Context, collectionName string, points []*qdrant.PointStruct) error {
	var lastErr error
	delay := s.options.retryDelay
	wait := true

	for attempt := 0; attempt <= s.options.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay = min(delay*3/2, maxRetryDelay)
		}

		_, err := s.client.GetPointsClient().Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName,
			Wait:           &wait,
			Points:         points,
		})
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.WarnContext(ctx, "Upsert attempt failed", "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("upsert failed after %d attempts: %w", s.options.retryAttempts+1, lastErr)
}

func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	scored, err := s.SimilaritySearchWithScores(ctx, query, numDocuments, options...)
	if err != nil {
		return nil, err
	}
	docs := make([]schema.Document, len(scored))
	for i, sd := range scored {
		docs[i] = sd.Document
	}
	return docs, nil
}

// SimilaritySearchWithScores honours the namespace, filter and score
// threshold options. Results keep Qdrant's ranking.
func (s *Store) SimilaritySearchWithScores(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]vectorstores.DocumentWithScore, error) {
	if strings.TrimSpace(query) == "" {
		s.logger.WarnContext(ctx, "Empty query provided")
		return []vectorstores.DocumentWithScore{}, nil
	}
	if numDocuments <= 0 {
		return nil, ErrInvalidNumDocuments
	}

	opts := vectorstores.ParseOptions(options...)
	embedder, err := s.embedderFor(opts)
	if err != nil {
		return nil, err
	}
	collectionName := s.getCollectionName(opts)

	start := time.Now()
	queryVector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.ErrorContext(ctx, "Query embedding failed", "error", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	req, err := searchRequest(collectionName, queryVector, numDocuments, opts)
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected search filter", "error", err)
		return nil, err
	}
	resp, err := s.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		if isNotFound(err) {
			s.logger.WarnContext(ctx, "Collection not found during search", "collection", collectionName)
			return nil, vectorstores.ErrCollectionNotFound
		}
		s.logger.ErrorContext(ctx, "Search failed", "error", err, "collection", collectionName)
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	points := resp.GetResult()
	out := make([]vectorstores.DocumentWithScore, len(points))
	for i, point := range points {
		out[i] = vectorstores.DocumentWithScore{
			Document: payloadToDocument(point.GetPayload(), s.options.contentKey),
			Score:    point.GetScore(),
		}
	}

	s.logger.DebugContext(ctx, "Similarity search completed",
		"collection", collectionName, "results", len(out), "duration", time.Since(start))
	return out, nil
}

func searchRequest(collectionName string, vector []float32, limit int, opts vectorstores.Options) (*qdrant.SearchPoints, error) {
	filter, err := buildQdrantFilter(opts.Filters)
	if err != nil {
		return nil, err
	}
	req := &qdrant.SearchPoints{
		CollectionName: collectionName,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
		Filter: filter,
	}
	if opts.ScoreThreshold > 0 {
		threshold := opts.ScoreThreshold
		req.ScoreThreshold = &threshold
	}
	return req, nil
}

func (s *Store) DeleteDocuments(ctx context.Context, ids []string, options ...vectorstores.Option) error {
	if len(ids) == 0 {
		return nil
	}
	opts := vectorstores.ParseOptions(options...)
	collectionName := s.getCollectionName(opts)

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}
	}
	return s.deletePoints(ctx, collectionName, &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Points{
			Points: &qdrant.PointsIdsList{Ids: pointIDs},
		},
	})
}

// DeleteDocumentsByFilter removes every point whose payload matches filters,
// for example all chunks of one source file.
func (s *Store) DeleteDocumentsByFilter(ctx context.Context, filters map[string]any, options ...vectorstores.Option) error {
	qdrantFilter, err := buildQdrantFilter(filters)
	if err != nil {
		return err
	}
	if qdrantFilter == nil {
		return ErrEmptyFilter
	}
	opts := vectorstores.ParseOptions(options...)
	return s.deletePoints(ctx, s.getCollectionName(opts), &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: qdrantFilter},
	})
}

func (s *Store) deletePoints(ctx context.Context, collectionName string, selector *qdrant.PointsSelector) error {
	wait := true
	_, err := s.client.GetPointsClient().Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Wait:           &wait,
		Points:         selector,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Document deletion failed", "error", err, "collection", collectionName)
		return fmt.Errorf("failed to delete documents from qdrant: %w", err)
	}
	s.logger.InfoContext(ctx, "Documents deleted", "collection", collectionName)
	return nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	resp, err := s.client.GetCollectionsClient().List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list qdrant collections: %w", err)
	}
	collections := resp.GetCollections()
	names := make([]string, len(collections))
	for i, col := range collections {
		names[i] = col.GetName()
	}
	return names, nil
}

func (s *Store) CollectionInfo(ctx context.Context, name string) (schema.CollectionInfo, error) {
	resp, err := s.client.GetCollectionsClient().Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: name})
	if err != nil {
		if isNotFound(err) {
			return schema.CollectionInfo{}, vectorstores.ErrCollectionNotFound
		}
		return schema.CollectionInfo{}, fmt.Errorf("failed to get collection info: %w", err)
	}
	result := resp.GetResult()
	params := result.GetConfig().GetParams().GetVectorsConfig().GetParams()
	return schema.CollectionInfo{
		Name:           name,
		PointsCount:    result.GetPointsCount(),
		VectorSize:     params.GetSize(),
		VectorDistance: params.GetDistance().String(),
	}, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string, dimension int) error {
	if strings.TrimSpace(name) == "" {
		return ErrMissingCollectionName
	}
	if dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dimension)
	}

	exists, err := s.collectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return ErrCollectionExists
	}

	_, err = s.client.GetCollectionsClient().Create(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Collection creation failed", "name", name, "error", err)
		return fmt.Errorf("failed to create qdrant collection: %w", err)
	}
	s.logger.InfoContext(ctx, "Collection created", "name", name, "dimension", dimension)
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrMissingCollectionName
	}
	_, err := s.client.GetCollectionsClient().Delete(ctx, &qdrant.DeleteCollection{CollectionName: name})
	if err != nil {
		if isNotFound(err) {
			return vectorstores.ErrCollectionNotFound
		}
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	s.logger.InfoContext(ctx, "Collection deleted", "name", name)
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	if _, err := s.client.GetCollectionsClient().List(ctx, &qdrant.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

func (s *Store) getCollectionName(opts vectorstores.Options) string {
	if opts.NameSpace != "" {
		return opts.NameSpace
	}
	return s.collectionName
}

func (s *Store) ensureCollection(ctx context.Context, collectionName string, embedder embeddings.Embedder) error {
	exists, err := s.collectionExists(ctx, collectionName)
	if err != nil || exists {
		return err
	}

	dimension, err := embedder.GetDimension(ctx)
	if err != nil {
		return fmt.Errorf("could not get embedder dimension: %w", err)
	}
	if err := s.CreateCollection(ctx, collectionName, dimension); err != nil && !errors.Is(err, ErrCollectionExists) {
		return err
	}
	return nil
}

func (s *Store) collectionExists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.GetCollectionsClient().Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: name})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isNotFound(err error) bool {
	stat, ok := status.FromError(err)
	return ok && stat.Code() == codes.NotFound
}

// documentID reuses a UUID "id" metadata value so re-ingesting a document
// overwrites its point. Anything else gets a fresh UUID.
func documentID(doc schema.Document) string {
	if id, ok := doc.Metadata["id"].(string); ok {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return uuid.NewString()
}

func documentToPayload(doc schema.Document, contentKey string) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(doc.Metadata)+1)
	for key, value := range doc.Metadata {
		payload[key] = toQdrantValue(value)
	}
	payload[contentKey] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: doc.PageContent}}
	return payload
}

func toQdrantValue(value any) *qdrant.Value {
	switch v := value.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}}
	case int32:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: v}}
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(v)}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: v}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: v}}
	case []string:
		values := make([]*qdrant.Value, len(v))
		for i, str := range v {
			values[i] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: str}}
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", v)}}
	}
}

func payloadToDocument(payload map[string]*qdrant.Value, contentKey string) schema.Document {
	doc := schema.Document{Metadata: make(map[string]any, len(payload))}
	for key, value := range payload {
		if key == contentKey {
			doc.PageContent = value.GetStringValue()
			continue
		}
		if v := fromQdrantValue(value); v != nil {
			doc.Metadata[key] = v
		}
	}
	return doc
}

func fromQdrantValue(value *qdrant.Value) any {
	switch v := value.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(v.ListValue.GetValues()))
		for i, val := range v.ListValue.GetValues() {
			list[i] = fromQdrantValue(val)
		}
		return list
	default:
		return nil
	}
}

// buildQdrantFilter turns equality filters into Must conditions, sorted by key
// so requests are reproducible. A value that cannot be expressed as a Qdrant
// match is an error; dropping it would widen the search.
func buildQdrantFilter(filters map[string]any) (*qdrant.Filter, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	conditions := make([]*qdrant.Condition, 0, len(keys))
	for _, key := range keys {
		match, err := toMatch(filters[key])
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %w", ErrUnsupportedFilter, key, err)
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{Key: key, Match: match},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}, nil
}

// toMatch maps a filter value to a Qdrant match. Lists decoded from YAML or
// JSON arrive as []any and must hold only strings or only whole numbers.
func toMatch(value any) (*qdrant.Match, error) {
	switch v := value.(type) {
	case string:
		return &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}, nil
	case bool:
		return &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}}, nil
	case []string:
		return keywordsMatch(v), nil
	case []int64:
		return integersMatch(v), nil
	case []int:
		ints := make([]int64, len(v))
		for i, n := range v {
			ints[i] = int64(n)
		}
		return integersMatch(ints), nil
	case []any:
		return listMatch(v)
	}
	if n, ok, err := toInteger(value); ok {
		if err != nil {
			return nil, err
		}
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: n}}, nil
	}
	return nil, fmt.Errorf("type %T", value)
}

func listMatch(values []any) (*qdrant.Match, error) {
	if len(values) == 0 {
		return nil, errors.New("empty list")
	}
	if _, isString := values[0].(string); isString {
		keywords := make([]string, len(values))
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("mixed list element %T", v)
			}
			keywords[i] = s
		}
		return keywordsMatch(keywords), nil
	}

	ints := make([]int64, len(values))
	for i, v := range values {
		n, ok, err := toInteger(v)
		if !ok {
			return nil, fmt.Errorf("list element %T", v)
		}
		if err != nil {
			return nil, err
		}
		ints[i] = n
	}
	return integersMatch(ints), nil
}

// toInteger reports whether value is numeric and converts it. Fractional
// floats are numeric but not matchable, so they return an error.
func toInteger(value any) (int64, bool, error) {
	var f float64
	switch v := value.(type) {
	case int:
		return int64(v), true, nil
	case int32:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case uint:
		return int64(v), true, nil
	case uint32:
		return int64(v), true, nil
	case uint64:
		return int64(v), true, nil
	case float32:
		f = float64(v)
	case float64:
		f = v
	default:
		return 0, false, nil
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, true, fmt.Errorf("non-integer number %v", f)
	}
	return int64(f), true, nil
}

func keywordsMatch(keywords []string) *qdrant.Match {
	return &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: keywords}}}
}

func integersMatch(ints []int64) *qdrant.Match {
	return &qdrant.Match{MatchValue: &qdrant.Match_Integers{Integers: &qdrant.RepeatedIntegers{Integers: ints}}}
}
