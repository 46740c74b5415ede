package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/models"
)

func TestLinkManager_LinkIsSymmetric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.protocol(t, "Q1")

	kw, err := f.keywords.CreateAndLink(ctx, p.ID, "ml")
	require.NoError(t, err)

	got, err := f.protocols.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Keywords, 1)
	assert.True(t, got.Keywords[0].Equal(models.Keyword{Word: "ml"}))

	loaded, err := f.keywords.Get(ctx, kw.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{p.ID}, loaded.ProtocolIDs)

	require.NoError(t, f.keywords.Unlink(ctx, p.ID, kw.ID))

	got, err = f.protocols.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Keywords)
	loaded, err = f.keywords.Get(ctx, kw.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.ProtocolIDs)
}

func TestLinkManager_LinkIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.protocol(t, "Q1")
	ds, err := f.dataSources.Create(ctx, p.ID, CreateDataSourceInput{Name: "ACM", URL: "https://dl.acm.org"})
	require.NoError(t, err)

	var before models.Protocol
	require.NoError(t, f.db.First(&before, p.ID).Error)

	require.NoError(t, f.dataSources.Link(ctx, p.ID, ds.ID))
	require.NoError(t, f.dataSources.Link(ctx, p.ID, ds.ID))

	assert.EqualValues(t, 1, f.count(t, &models.ProtocolDataSource{}, "protocol_id = ?", p.ID))
	var after models.Protocol
	require.NoError(t, f.db.First(&after, p.ID).Error)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt), "a no-op link must not write the protocol")
}

func TestLinkManager_UnlinkOfUnlinkedPairIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.protocol(t, "Q1")
	other := f.protocol(t, "Q2")
	c, err := f.criteria.CreateAndLink(ctx, other.ID, CriteriaInput{Text: "peer-reviewed", Type: models.CriteriaInclusion})
	require.NoError(t, err)

	require.NoError(t, f.criteria.Unlink(ctx, p.ID, c.ID))

	loaded, err := f.criteria.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{other.ID}, loaded.ProtocolIDs)
}

func TestLinkManager_LinkTouchesOwnerOnce(t *testing.T) {
	f := newFixture(t)
	p := f.protocol(t, "Q1")
	kw := models.Keyword{Word: "ir"}
	require.NoError(t, f.db.Create(&kw).Error)

	var before models.Protocol
	require.NoError(t, f.db.First(&before, p.ID).Error)

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.links.Link(tx, RelationKeyword, p.ID, kw.ID)
	}))

	var after models.Protocol
	require.NoError(t, f.db.First(&after, p.ID).Error)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestLinkManager_LinkRequiresBothEndpoints(t *testing.T) {
	f := newFixture(t)
	p := f.protocol(t, "Q1")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.links.Link(tx, RelationKeyword, p.ID, 999)
	})
	requireKind(t, err, apperr.KindNotFound)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		return f.links.Link(tx, RelationKeyword, 999, 1)
	})
	requireKind(t, err, apperr.KindNotFound)
	assert.Zero(t, f.count(t, &models.ProtocolKeyword{}, ""))
}

func TestLinkManager_DetachTargetLeavesOwners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.protocol(t, "A")
	b := f.protocol(t, "B")
	kw, err := f.keywords.CreateAndLink(ctx, a.ID, "nlp")
	require.NoError(t, err)
	_, err = f.keywords.CreateAndLink(ctx, b.ID, "nlp")
	require.NoError(t, err)

	var owners []uint
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		owners, err = f.links.DetachTarget(tx, RelationKeyword, kw.ID)
		return err
	}))

	assert.Equal(t, []uint{a.ID, b.ID}, owners)
	assert.EqualValues(t, 2, f.count(t, &models.Protocol{}, "id IN ?", []uint{a.ID, b.ID}))
	assert.Zero(t, f.count(t, &models.ProtocolKeyword{}, ""))
}
