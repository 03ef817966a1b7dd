package vectorbackend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// defaultQdrantRateLimit and defaultQdrantBurst bound calls to the remote
// cluster; remote-opt-in backends are the one place this module talks to a
// service it doesn't control the quota of.
const (
	defaultQdrantRateLimit = 20
	defaultQdrantBurst     = 10
)

// QdrantConfig configures the remote-opt-in Qdrant backend, using the gRPC
// client rather than Qdrant's REST API.
type QdrantConfig struct {
	Host           string
	Port           int
	UseTLS         bool
	Dims           int
	EmbedderID     string
	MaxMessageSize int
	RateLimit      float64
	Burst          int
}

// Qdrant is the remote-opt-in backend over Qdrant's native gRPC client. One
// collection per repoId (collectionName), auto-created on first Upsert.
type Qdrant struct {
	client     *qdrant.Client
	host       string
	port       int
	dims       int
	embedderID string
	limiter    *rate.Limiter
}

// NewQdrant dials the Qdrant gRPC endpoint described by cfg.
func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	if cfg.Host == "" {
		return nil, memory.NewError(memory.KindBackendIO, "qdrant host is required", nil)
	}
	maxMsg := cfg.MaxMessageSize
	if maxMsg <= 0 {
		maxMsg = 50 * 1024 * 1024
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxMsg),
				grpc.MaxCallSendMsgSize(maxMsg),
			),
		},
	})
	if err != nil {
		return nil, memory.NewError(memory.KindBackendIO, "connecting to qdrant", err)
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultQdrantRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultQdrantBurst
	}
	return &Qdrant{
		client:     client,
		host:       cfg.Host,
		port:       cfg.Port,
		dims:       cfg.Dims,
		embedderID: cfg.EmbedderID,
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
	}, nil
}

func (q *Qdrant) Init(ctx context.Context) error { return nil }

func (q *Qdrant) ensureCollection(ctx context.Context, name string) error {
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return memory.NewError(memory.KindBackendIO, "checking qdrant collection", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return memory.NewError(memory.KindBackendIO, "creating qdrant collection", err)
	}
	return nil
}

// pointID derives a deterministic qdrant point UUID from (repoId, entryId):
// qdrant point IDs must be UUIDs or integers, but our entry IDs need not be.
func pointID(repoID, entryID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(repoID+"/"+entryID)).String())
}

func (q *Qdrant) Upsert(ctx context.Context, repoID string, items []UpsertItem) error {
	if err := q.limiter.Wait(ctx); err != nil {
		return memory.NewError(memory.KindBackendTimeout, "rate limit wait", err)
	}
	name := collectionName(repoID)
	if err := q.ensureCollection(ctx, name); err != nil {
		return err
	}

	// Remote payload carries only {repoId, type, stale, updatedAt} — never
	// title or content (§4.3's remote implementation contract).
	points := make([]*qdrant.PointStruct, len(items))
	for i, item := range items {
		payload := map[string]*qdrant.Value{
			"repoId":    {Kind: &qdrant.Value_StringValue{StringValue: repoID}},
			"entryId":   {Kind: &qdrant.Value_StringValue{StringValue: item.ID}},
			"type":      {Kind: &qdrant.Value_StringValue{StringValue: string(item.Metadata.Type)}},
			"stale":     {Kind: &qdrant.Value_BoolValue{BoolValue: item.Metadata.Stale}},
			"updatedAt": {Kind: &qdrant.Value_IntegerValue{IntegerValue: item.Metadata.UpdatedAt}},
		}
		points[i] = &qdrant.PointStruct{
			Id:      pointID(repoID, item.ID),
			Vectors: qdrant.NewVectors(item.Vector...),
			Payload: payload,
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: name, Points: points})
	if err != nil {
		return memory.NewError(memory.KindBackendIO, "upserting to qdrant", err)
	}
	return nil
}

func (q *Qdrant) Query(ctx context.Context, repoID string, queryVec []float32, topK int, filters *Filters) ([]Hit, error) {
	if err := q.limiter.Wait(ctx); err != nil {
		return nil, memory.NewError(memory.KindBackendTimeout, "rate limit wait", err)
	}
	name := collectionName(repoID)
	if topK <= 0 {
		topK = 1000
	}

	conditions := []*qdrant.Condition{
		{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
			Key:   "repoId",
			Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: repoID}},
		}}},
	}
	if filters != nil {
		if filters.Type != nil {
			conditions = append(conditions, &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
				Key:   "type",
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: string(*filters.Type)}},
			}}})
		}
		if filters.Stale != nil {
			conditions = append(conditions, &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
				Key:   "stale",
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: *filters.Stale}},
			}}})
		}
	}

	res, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(queryVec...),
		Filter:         &qdrant.Filter{Must: conditions},
		Limit:          qdrant.PtrOf(uint64(topK)),
	})
	if err != nil {
		return nil, memory.NewError(memory.KindBackendIO, "querying qdrant", err)
	}

	hits := make([]Hit, 0, len(res))
	for _, p := range res {
		entryID := repoID
		if v, ok := p.Payload["entryId"]; ok {
			entryID = v.GetStringValue()
		}
		hits = append(hits, Hit{ID: entryID, Score: float64(p.Score)})
	}
	return hits, nil
}

func (q *Qdrant) DeleteByIDs(ctx context.Context, repoID string, ids []string) error {
	if err := q.limiter.Wait(ctx); err != nil {
		return memory.NewError(memory.KindBackendTimeout, "rate limit wait", err)
	}
	name := collectionName(repoID)
	keywords := make([]string, len(ids))
	copy(keywords, ids)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{Must: []*qdrant.Condition{
					{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
						Key:   "entryId",
						Match: &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: keywords}}},
					}}},
				}},
			},
		},
	})
	if err != nil {
		return memory.NewError(memory.KindBackendIO, "deleting from qdrant", err)
	}
	return nil
}

// WipeRepo uses a filtered delete on repoId, per §4.3's remote contract.
func (q *Qdrant) WipeRepo(ctx context.Context, repoID string) error {
	name := collectionName(repoID)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{Must: []*qdrant.Condition{
					{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
						Key:   "repoId",
						Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: repoID}},
					}}},
				}},
			},
		},
	})
	if err != nil {
		return memory.NewError(memory.KindBackendIO, "wiping qdrant repo", err)
	}
	return nil
}

func (q *Qdrant) Info() Info {
	return Info{
		Backend:         "qdrant",
		Dims:            q.dims,
		EmbedderID:      q.embedderID,
		Location:        fmt.Sprintf("%s:%d", q.host, q.port),
		SupportsFilters: true,
	}
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}
