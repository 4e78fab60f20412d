package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"github.com/sirupsen/logrus"
)

const (
	payloadUserID    = "user_id"
	payloadCaptureID = "capture_id"
	defaultGRPCPort  = 6334
)

// QdrantStore implements Index using Qdrant.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	log        logrus.FieldLogger
}

var _ Index = (*QdrantStore)(nil)

// NewQdrantStore creates a Qdrant client for collection.
// urlStr is the HTTP address ("http://host:6333"); the gRPC port is derived
// as HTTP port + 1.
func NewQdrantStore(urlStr, collection string, logger logrus.FieldLogger) (*QdrantStore, error) {
	host, port, err := grpcEndpoint(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: collection,
		log: logger.WithFields(logrus.Fields{
			"component":  "vectorstore",
			"collection": collection,
		}),
	}, nil
}

func grpcEndpoint(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := defaultGRPCPort
	if p := parsedURL.Port(); p != "" {
		if httpPort, err := strconv.Atoi(p); err == nil {
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Upsert implements Index.
func (s *QdrantStore) Upsert(ctx context.Context, userID, captureID string, vec []float64) error {
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(captureID),
			Vectors: qdrant.NewVectors(toFloat32(vec)...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadUserID:    userID,
				payloadCaptureID: captureID,
			}),
		}},
	})
	if err != nil {
		s.log.WithError(err).WithField("capture_id", captureID).Error("Failed to upsert point")
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Nearest implements Index.
func (s *QdrantStore) Nearest(ctx context.Context, userID string, vec []float64, k int) ([]string, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	limit := uint64(k)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(toFloat32(vec)...),
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadUserID, userID)},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("Nearest-neighbour query failed")
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	ids := make([]string, 0, len(points))
	for _, p := range points {
		if v, ok := p.GetPayload()[payloadCaptureID]; ok && v.GetStringValue() != "" {
			ids = append(ids, v.GetStringValue())
			continue
		}
		if id := p.GetId().GetUuid(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Delete implements Index.
func (s *QdrantStore) Delete(ctx context.Context, userID, captureID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewID(captureID)),
	})
	if err != nil {
		s.log.WithError(err).WithField("capture_id", captureID).Error("Failed to delete point")
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance when missing,
// and checks the vector size when present.
func (s *QdrantStore) EnsureCollection(ctx context.Context, vectorSize int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		s.log.WithField("vector_size", vectorSize).Info("Creating collection")
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil || params.GetSize() == 0 {
		return fmt.Errorf("could not determine collection vector size")
	}
	if int(params.GetSize()) != vectorSize {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, params.GetSize())
	}

	s.log.WithField("vector_size", vectorSize).Info("Collection validated")
	return nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
