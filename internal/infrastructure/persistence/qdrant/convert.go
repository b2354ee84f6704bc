package qdrant

import (
	"strings"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"

	"resource-search-api/internal/application/retrieval"
	"resource-search-api/internal/application/search"
)

const (
	keyResourceID = "resource_id"
	keyTitle      = "title"
	keyURL        = "url"
	keyType       = "type"
	keyTopic      = "topic"
	keyCountry    = "country"
	keyYear       = "year"
	keyExcerpt    = "excerpt"
)

// pointNamespace 资源 id → 点 id 的 UUIDv5 命名空间
var pointNamespace = uuid.MustParse("0b4f7d36-51c2-4e8a-a7c9-5c0e3f1d2b87")

// PointID 资源 id 稳定映射为 Qdrant UUID 点 id
func PointID(resourceID string) *pb.PointId {
	return &pb.PointId{
		PointIdOptions: &pb.PointId_Uuid{
			Uuid: uuid.NewSHA1(pointNamespace, []byte(resourceID)).String(),
		},
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}}
}

// toPoint 资源 → 点
func toPoint(r *retrieval.VectorResource) *pb.PointStruct {
	return &pb.PointStruct{
		Id: PointID(r.ID),
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: r.Vector},
			},
		},
		Payload: map[string]*pb.Value{
			keyResourceID: stringValue(r.ID),
			keyTitle:      stringValue(r.Title),
			keyURL:        stringValue(r.URL),
			keyType:       stringValue(r.Type),
			keyTopic:      stringValue(r.Topic),
			keyCountry:    stringValue(r.Country),
			keyYear:       intValue(r.Year),
			keyExcerpt:    stringValue(r.Excerpt),
		},
	}
}

// fromPayload 点载荷 → 文档
func fromPayload(payload map[string]*pb.Value, score float32) search.DocChunk {
	str := func(k string) string {
		return payload[k].GetStringValue()
	}
	return search.DocChunk{
		ID:      str(keyResourceID),
		Title:   str(keyTitle),
		URL:     str(keyURL),
		Type:    str(keyType),
		Topic:   str(keyTopic),
		Country: str(keyCountry),
		Year:    int(payload[keyYear].GetIntegerValue()),
		Excerpt: str(keyExcerpt),
		Score:   float64(score),
	}
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

// toFilter 过滤条件 → Qdrant Filter；无条件返回 nil。
func toFilter(f search.VectorFilter) *pb.Filter {
	var must []*pb.Condition
	if v := strings.TrimSpace(f.Topic); v != "" {
		must = append(must, keywordCondition(keyTopic, v))
	}
	if v := strings.TrimSpace(f.Country); v != "" {
		must = append(must, keywordCondition(keyCountry, v))
	}
	switch {
	case f.Year > 0:
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   keyYear,
					Match: &pb.Match{MatchValue: &pb.Match_Integer{Integer: int64(f.Year)}},
				},
			},
		})
	case f.YearFrom > 0 || f.YearTo > 0:
		rng := &pb.Range{}
		if f.YearFrom > 0 {
			from := float64(f.YearFrom)
			rng.Gte = &from
		}
		if f.YearTo > 0 {
			to := float64(f.YearTo)
			rng.Lte = &to
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{Key: keyYear, Range: rng},
			},
		})
	}
	var types []string
	for _, t := range f.Types {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	if len(types) > 0 {
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: keyType,
					Match: &pb.Match{MatchValue: &pb.Match_Keywords{
						Keywords: &pb.RepeatedStrings{Strings: types},
					}},
				},
			},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return &pb.Filter{Must: must}
}

func withPayload() *pb.WithPayloadSelector {
	return &pb.WithPayloadSelector{
		SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
	}
}
