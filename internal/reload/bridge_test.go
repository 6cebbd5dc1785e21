package reload_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mfstack/mfgate/internal/reload"
	"github.com/mfstack/mfgate/internal/reload/mocks"
)

func TestBridge_Announce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		allowed      []string
		app          string
		wantReloads  int
		wantAccepted bool
	}{
		{name: "allowed app reloads once", allowed: []string{"remoteapp1", "remoteapp2"}, app: "remoteapp1", wantReloads: 1, wantAccepted: true},
		{name: "unknown app ignored", allowed: []string{"remoteapp1"}, app: "other", wantReloads: 0, wantAccepted: false},
		{name: "empty allow-list ignores everything", allowed: nil, app: "remoteapp1", wantReloads: 0, wantAccepted: false},
		{name: "match is case sensitive", allowed: []string{"remoteapp1"}, app: "RemoteApp1", wantReloads: 0, wantAccepted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			reloader := mocks.NewMockReloader(ctrl)
			reloader.EXPECT().FullReload(gomock.Any(), tt.app).Return(nil).Times(tt.wantReloads)

			b := reload.NewBridge(reloader, tt.allowed)
			accepted, err := b.Announce(context.Background(), reload.Announcement{AppName: tt.app})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccepted, accepted)
		})
	}
}

func TestBridge_OneReloadPerAnnouncement(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	reloader := mocks.NewMockReloader(ctrl)
	reloader.EXPECT().FullReload(gomock.Any(), "remoteapp2").Return(nil).Times(3)

	b := reload.NewBridge(reloader, []string{"remoteapp1", "remoteapp2"})
	for range 3 {
		accepted, err := b.Announce(context.Background(), reload.Announcement{AppName: "remoteapp2"})
		require.NoError(t, err)
		assert.True(t, accepted)
	}
}

func TestBridge_MissingAppName(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	reloader := mocks.NewMockReloader(ctrl)

	b := reload.NewBridge(reloader, []string{"remoteapp1"})
	accepted, err := b.Announce(context.Background(), reload.Announcement{})
	assert.ErrorIs(t, err, reload.ErrMissingAppName)
	assert.False(t, accepted)
}

func TestBridge_ReloaderError(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	reloader := mocks.NewMockReloader(ctrl)
	reloader.EXPECT().FullReload(gomock.Any(), "remoteapp1").Return(reload.ErrHubClosed)

	b := reload.NewBridge(reloader, []string{"remoteapp1"})
	accepted, err := b.Announce(context.Background(), reload.Announcement{AppName: "remoteapp1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, reload.ErrHubClosed))
	assert.Contains(t, err.Error(), "remoteapp1")
	assert.False(t, accepted)
}

func TestBridge_AllowedApps(t *testing.T) {
	t.Parallel()
	b := reload.NewBridge(nil, []string{"remoteapp2", " remoteapp1 ", "", "remoteapp2"})
	assert.Equal(t, []string{"remoteapp1", "remoteapp2"}, b.AllowedApps())
}
