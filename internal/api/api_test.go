package api

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamcutter/patchr/internal/catalog"
	"github.com/teamcutter/patchr/internal/domain"
	"github.com/teamcutter/patchr/internal/manager"
)

type fakeEngine struct {
	calls     []string
	group     catalog.Group
	customErr error
	refreshed bool
}

func (f *fakeEngine) Status(context.Context) (*manager.Status, error) {
	f.calls = append(f.calls, "status")
	return &manager.Status{LocalVersion: "v0", RemoteVersion: "v2"}, nil
}

func (f *fakeEngine) LatestNews(context.Context) (string, error) {
	f.calls = append(f.calls, "news")
	return "# news", nil
}

func (f *fakeEngine) InstallPatchGroup(_ context.Context, g catalog.Group) (*manager.Install, error) {
	f.calls = append(f.calls, "group")
	f.group = g
	return nil, nil
}

func (f *fakeEngine) InstallCustomContent(context.Context) (*manager.Install, error) {
	f.calls = append(f.calls, "custom")
	return nil, f.customErr
}

func (f *fakeEngine) InstallStoreAddOn(context.Context) (*manager.Install, error) {
	f.calls = append(f.calls, "addon")
	return nil, nil
}

func (f *fakeEngine) PatchExecutable() error {
	f.calls = append(f.calls, "exe")
	return nil
}

func (f *fakeEngine) EnsureReservedPlaceholders() ([]string, error) {
	f.calls = append(f.calls, "reserve")
	return []string{"patch-U.MPQ"}, nil
}

func (f *fakeEngine) Refresh() {
	f.refreshed = true
}

func TestDispatchInfo(t *testing.T) {
	engine := &fakeEngine{}
	res, err := NewDispatcher(engine).Dispatch(context.Background(), Info{})
	require.NoError(t, err)

	info, ok := res.(InfoResult)
	require.True(t, ok)
	assert.Equal(t, "v2", info.RemoteVersion)
	assert.Equal(t, "# news", info.News)
	assert.Equal(t, []string{"status", "news"}, engine.calls)
}

func TestDispatchInstalls(t *testing.T) {
	engine := &fakeEngine{}
	d := NewDispatcher(engine)
	ctx := context.Background()

	res, err := d.Dispatch(ctx, InstallGroup{Group: catalog.Misc})
	require.NoError(t, err)
	assert.Nil(t, res.(InstallResult).Install)
	assert.Equal(t, catalog.Misc, engine.group)

	_, err = d.Dispatch(ctx, InstallAddOn{})
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, PatchExecutable{})
	require.NoError(t, err)

	res, err = d.Dispatch(ctx, Reserve{})
	require.NoError(t, err)
	assert.Equal(t, []string{"patch-U.MPQ"}, res.(ReserveResult).Created)

	_, err = d.Dispatch(ctx, Refresh{})
	require.NoError(t, err)
	assert.True(t, engine.refreshed)
	assert.Equal(t, []string{"group", "addon", "exe", "reserve"}, engine.calls)
}

func TestDispatchPropagatesDomainErrors(t *testing.T) {
	engine := &fakeEngine{customErr: domain.ErrNoRemoteVersion}
	_, err := NewDispatcher(engine).Dispatch(context.Background(), InstallCustom{})
	assert.True(t, errors.Is(err, domain.ErrNoRemoteVersion))
}

func TestDispatchNil(t *testing.T) {
	_, err := NewDispatcher(&fakeEngine{}).Dispatch(context.Background(), nil)
	assert.Error(t, err)
}
