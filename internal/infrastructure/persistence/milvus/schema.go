package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionResources 资源集合
	CollectionResources = "resources"

	// DefaultVectorDimension 默认向量维度
	DefaultVectorDimension = 1024

	fieldID      = "id"
	fieldVector  = "vector"
	fieldTitle   = "title"
	fieldURL     = "url"
	fieldType    = "type"
	fieldTopic   = "topic"
	fieldCountry = "country"
	fieldYear    = "year"
	fieldExcerpt = "excerpt"
)

// metadataFields 检索时返回的标量字段
var metadataFields = []string{fieldID, fieldTitle, fieldURL, fieldType, fieldTopic, fieldCountry, fieldYear, fieldExcerpt}

// ResourcesSchema 资源 Collection Schema，一个资源一条向量
func ResourcesSchema(dim int) *entity.Schema {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	varchar := func(name string, maxLen int) *entity.Field {
		return &entity.Field{
			Name:       name,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": strconv.Itoa(maxLen)},
		}
	}
	id := varchar(fieldID, 128)
	id.PrimaryKey = true

	return &entity.Schema{
		CollectionName: CollectionResources,
		Description:    "Curated resources for semantic search",
		Fields: []*entity.Field{
			id,
			{
				Name:       fieldVector,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dim)},
			},
			varchar(fieldTitle, 1024),
			varchar(fieldURL, 2048),
			varchar(fieldType, 64),
			varchar(fieldTopic, 256),
			varchar(fieldCountry, 128),
			{Name: fieldYear, DataType: entity.FieldTypeInt64},
			varchar(fieldExcerpt, 4096),
		},
	}
}
