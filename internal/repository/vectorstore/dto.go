package vectorstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/neuralquery/internal/db"
	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/result"
)

// Hash field names of an item.
const (
	fieldID       = "__id"
	fieldVector   = "__vector"
	fieldMetadata = "__metadata"
	vectorAlias   = "vector"
)

// Hash field names of the collection metadata.
const (
	metaName      = "name"
	metaDimension = "dimension"
	metaMetric    = "metric"
	metaCreatedAt = "created_at"
)

type keys struct {
	prefix string
}

func (k keys) meta(name string) string       { return k.prefix + "collection:" + name }
func (k keys) index(name string) string      { return k.prefix + "idx:" + name }
func (k keys) itemPrefix(name string) string { return k.prefix + "item:" + name + ":" }
func (k keys) item(name, id string) string   { return k.itemPrefix(name) + id }

type collectionMeta struct {
	name      string
	dimension int
	metric    domain.Metric
	createdAt time.Time
}

func metaToHash(m collectionMeta) map[string]string {
	return map[string]string{
		metaName:      m.name,
		metaDimension: strconv.Itoa(m.dimension),
		metaMetric:    string(m.metric),
		metaCreatedAt: strconv.FormatInt(m.createdAt.UnixMilli(), 10),
	}
}

func metaFromHash(h map[string]string) (collectionMeta, error) {
	dim, err := strconv.Atoi(h[metaDimension])
	if err != nil {
		return collectionMeta{}, fmt.Errorf("parse dimension %q: %w", h[metaDimension], err)
	}
	m := collectionMeta{
		name:      h[metaName],
		dimension: dim,
		metric:    domain.Metric(h[metaMetric]),
	}
	if m.metric == "" {
		m.metric = domain.MetricCosine
	}
	if ms, err := strconv.ParseInt(h[metaCreatedAt], 10, 64); err == nil {
		m.createdAt = time.UnixMilli(ms).UTC()
	}
	return m, nil
}

func itemToHash(it domain.Item) (map[string]string, error) {
	meta := it.Metadata
	if meta == nil {
		meta = domain.Metadata{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata %s: %w", it.ID, err)
	}
	return map[string]string{
		fieldID:       it.ID,
		fieldVector:   string(db.EncodeVector(it.Vector)),
		fieldMetadata: string(raw),
	}, nil
}

func matchFromEntry(k keys, collection string, e db.SearchEntry, metric domain.Metric) (result.Match, error) {
	id := e.Fields[fieldID]
	if id == "" {
		id = strings.TrimPrefix(e.Key, k.itemPrefix(collection))
	}
	meta := domain.Metadata{}
	if raw := e.Fields[fieldMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return result.Match{}, fmt.Errorf("unmarshal metadata %s: %w", id, err)
		}
	}
	return result.New(id, similarity(metric, e.Distance), meta), nil
}
