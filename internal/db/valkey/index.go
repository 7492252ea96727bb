package valkey

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/neuralquery/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "already exists") {
			return db.ErrIndexExists
		}
		return wrap(db.OpCreateIndex, err)
	}
	return nil
}

// DropIndex removes an FT index by name. Indexed hashes are kept.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isIndexNotFound(err) {
			return db.ErrIndexNotFound
		}
		return wrap(db.OpDropIndex, err)
	}
	return nil
}

// IndexExists probes index existence via FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	_, err := s.IndexInfo(ctx, name)
	if errors.Is(err, db.ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IndexInfo reads num_docs from FT.INFO.
func (s *Store) IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	res := s.do(ctx, cmd)
	if err := res.Error(); err != nil {
		if isIndexNotFound(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, wrap(db.OpIndexInfo, err)
	}

	raw, err := res.ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpIndexInfo, Err: fmt.Errorf("unexpected reply: %w", err)}
	}

	info := &db.IndexInfo{Name: name}
	// flat RESP2 pairs: [key1, val1, key2, val2, ...]
	for i := 0; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil || key != "num_docs" {
			continue
		}
		n, err := raw[i+1].AsInt64()
		if err != nil {
			return nil, &db.Error{Op: db.OpIndexInfo, Err: fmt.Errorf("parse num_docs: %w", err)}
		}
		info.NumDocs = int(n)
		break
	}
	return info, nil
}

// isIndexNotFound matches both Redis ("Unknown index name") and valkey-search ("Index ... not found").
func isIndexNotFound(err error) bool {
	return isRedisErr(err, "unknown index name") ||
		isRedisErr(err, "no such index") ||
		(isRedisErr(err, "index") && isRedisErr(err, "not found"))
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name}

	storage := idx.StorageType
	if storage == "" {
		storage = db.StorageHash
	}
	args = append(args, "ON", string(storage))

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}

	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}

	case db.IndexFieldVector:
		vectorArgs, err := buildVectorFieldArgs(f)
		if err != nil {
			return nil, err
		}
		args = append(args, vectorArgs...)

	default:
		return nil, errors.New("unknown field type")
	}

	return args, nil
}

func buildVectorFieldArgs(f *db.IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	algo := f.VectorAlgo
	if algo == "" {
		algo = db.VectorHNSW
	}

	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}

	if f.VectorM > 0 {
		attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
	}
	if f.VectorEFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
	}

	result := make([]string, 0, 3+len(attrs))
	result = append(result, "VECTOR", string(algo), strconv.Itoa(len(attrs)))
	result = append(result, attrs...)

	return result, nil
}
