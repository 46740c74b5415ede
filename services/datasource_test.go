package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slr-manager/apperr"
	"slr-manager/models"
)

func TestCreateDataSourceInput_ResolveKind(t *testing.T) {
	origin := uint(7)
	tests := []struct {
		name    string
		in      CreateDataSourceInput
		want    models.DataSourceKind
		wantErr bool
	}{
		{name: "custom by default", in: CreateDataSourceInput{Name: "Lab notes", Source: "internal"}, want: models.DataSourceCustom},
		{name: "url means predefined", in: CreateDataSourceInput{Name: "ACM", URL: "https://dl.acm.org"}, want: models.DataSourcePredefined},
		{name: "direction means snowballing", in: CreateDataSourceInput{Name: "Refs", SnowballingType: models.SnowballingBackwards, OriginStudyID: &origin}, want: models.DataSourceSnowballing},
		{name: "url and direction are ambiguous", in: CreateDataSourceInput{Name: "X", URL: "https://x.org", SnowballingType: models.SnowballingForward}, wantErr: true},
		{name: "explicit kind wins", in: CreateDataSourceInput{Kind: models.DataSourceSnowballing, Name: "Fwd", SnowballingType: models.SnowballingForward}, want: models.DataSourceSnowballing},
		{name: "explicit predefined without url", in: CreateDataSourceInput{Kind: models.DataSourcePredefined, Name: "ACM"}, wantErr: true},
		{name: "explicit custom with url", in: CreateDataSourceInput{Kind: models.DataSourceCustom, Name: "X", URL: "https://x.org"}, wantErr: true},
		{name: "snowballing with bad direction", in: CreateDataSourceInput{Kind: models.DataSourceSnowballing, Name: "X", SnowballingType: "SIDEWAYS"}, wantErr: true},
		{name: "unknown kind", in: CreateDataSourceInput{Kind: "OTHER", Name: "X"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.resolveKind()
			if tt.wantErr {
				requireKind(t, err, apperr.KindInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDataSourceRegistry_CreateAndGetEachVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.protocol(t, "Q1")
	origin := uint(42)

	custom, err := f.dataSources.Create(ctx, p.ID, CreateDataSourceInput{Name: "Lab notes", Source: "shared drive"})
	require.NoError(t, err)
	predefined, err := f.dataSources.Create(ctx, p.ID, CreateDataSourceInput{Name: "ACM", URL: "https://dl.acm.org"})
	require.NoError(t, err)
	snow, err := f.dataSources.Create(ctx, p.ID, CreateDataSourceInput{
		Name: "Backward refs", Source: "study 42", SnowballingType: models.SnowballingBackwards, OriginStudyID: &origin,
	})
	require.NoError(t, err)

	got, err := f.dataSources.Get(ctx, custom.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Custom)
	assert.Equal(t, "shared drive", got.Custom.Source)

	got, err = f.dataSources.Get(ctx, predefined.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Predefined)
	assert.Equal(t, "https://dl.acm.org", got.Predefined.URL)
	assert.Nil(t, got.Custom)

	got, err = f.dataSources.Get(ctx, snow.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Snowballing)
	assert.Equal(t, models.SnowballingBackwards, got.Snowballing.Direction)
	require.NotNil(t, got.Snowballing.OriginStudyID)
	assert.Equal(t, origin, *got.Snowballing.OriginStudyID)
	assert.Equal(t, []uint{p.ID}, got.ProtocolIDs)

	protocol, err := f.protocols.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, protocol.DataSources, 3)
}

func TestDataSourceRegistry_CreateRejectsInvalidURL(t *testing.T) {
	f := newFixture(t)
	p := f.protocol(t, "Q1")

	_, err := f.dataSources.Create(context.Background(), p.ID, CreateDataSourceInput{Name: "ACM", URL: "not a url"})

	requireKind(t, err, apperr.KindInvalidInput)
	assert.Zero(t, f.count(t, &models.DataSource{}, ""))
}

func TestDataSourceRegistry_DeleteDetachesButKeepsProtocols(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.protocol(t, "A")
	b := f.protocol(t, "B")
	ds, err := f.dataSources.Create(ctx, a.ID, CreateDataSourceInput{Name: "ACM", URL: "https://dl.acm.org"})
	require.NoError(t, err)
	require.NoError(t, f.dataSources.Link(ctx, b.ID, ds.ID))

	require.NoError(t, f.dataSources.Delete(ctx, ds.ID))

	_, err = f.dataSources.Get(ctx, ds.ID)
	requireKind(t, err, apperr.KindNotFound)
	assert.Zero(t, f.count(t, &models.ProtocolDataSource{}, ""))
	assert.Zero(t, f.count(t, &models.PredefinedSource{}, ""))
	assert.EqualValues(t, 2, f.count(t, &models.Protocol{}, ""))

	pa, err := f.protocols.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, pa.DataSources)
}

func TestDataSourceRegistry_EqualityByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.protocol(t, "Q1")
	in := CreateDataSourceInput{Name: "ACM", URL: "https://dl.acm.org"}

	d1, err := f.dataSources.Create(ctx, p.ID, in)
	require.NoError(t, err)
	d2, err := f.dataSources.Create(ctx, p.ID, in)
	require.NoError(t, err)

	assert.False(t, d1.Equal(*d2))
	assert.True(t, d1.Equal(*d1))
}
