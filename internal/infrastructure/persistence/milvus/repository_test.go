package milvus

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-search-api/internal/application/retrieval"
	"resource-search-api/internal/application/search"
)

func TestDocsFromColumns(t *testing.T) {
	rs := client.ResultSet{
		entity.NewColumnVarChar(fieldID, []string{"r1", "r2"}),
		entity.NewColumnVarChar(fieldTitle, []string{"Guide", "Report"}),
		entity.NewColumnVarChar(fieldType, []string{"Guide", "Report"}),
		entity.NewColumnInt64(fieldYear, []int64{2021, 0}),
	}

	docs := docsFromColumns(rs, []float32{0.9, 0.5}, 2)
	require.Len(t, docs, 2)
	assert.Equal(t, "r1", docs[0].ID)
	assert.Equal(t, 2021, docs[0].Year)
	assert.InDelta(t, 0.9, docs[0].Score, 1e-6)
	assert.Equal(t, "", docs[1].URL)
	assert.Equal(t, 0, docs[1].Year)
}

func TestDocsFromColumns_CountBoundsRows(t *testing.T) {
	rs := client.ResultSet{entity.NewColumnVarChar(fieldID, []string{"r1"})}
	assert.Len(t, docsFromColumns(rs, nil, 3), 1)
}

func TestResourcesSchema(t *testing.T) {
	s := ResourcesSchema(768)
	assert.Equal(t, CollectionResources, s.CollectionName)
	require.NotEmpty(t, s.Fields)
	assert.True(t, s.Fields[0].PrimaryKey)
	assert.Equal(t, "768", s.Fields[1].TypeParams["dim"])

	assert.Equal(t, "1024", ResourcesSchema(0).Fields[1].TypeParams["dim"])
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, CollectionResources, collectionName(""))
	assert.Equal(t, "staging_"+CollectionResources, collectionName("staging"))
}

func TestRepository_Disabled(t *testing.T) {
	var r *Repository
	ctx := context.Background()

	_, err := r.Search(ctx, []float32{1}, 5, 0, search.VectorFilter{})
	assert.ErrorIs(t, err, retrieval.ErrVectorDisabled)
	assert.ErrorIs(t, r.EnsureResourceCollection(ctx), retrieval.ErrVectorDisabled)
	_, err = r.Sample(ctx, search.VectorFilter{}, 3)
	assert.ErrorIs(t, err, retrieval.ErrVectorDisabled)
}
