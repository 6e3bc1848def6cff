package location

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hazard-reporter/internal/common/config"
	httpclient "hazard-reporter/internal/common/http"
	"hazard-reporter/internal/models"
)

func TestIPTier(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		delay   time.Duration
		want    models.LocationFix
		wantErr error
	}{
		{
			name:   "success",
			body:   `{"status":"success","country":"Australia","countryCode":"AU","lat":-30.0275,"lon":148.1175}`,
			status: http.StatusOK,
			want:   models.LocationFix{Latitude: -30.0275, Longitude: 148.1175, SpanLat: 0.1, SpanLon: 0.1},
		},
		{name: "fail status", body: `{"status":"fail","message":"reserved range"}`, status: http.StatusOK},
		{name: "http error", body: `quota`, status: http.StatusTooManyRequests},
		{name: "slow server", body: `{"status":"success","lat":1,"lon":1}`, status: http.StatusOK, delay: 300 * time.Millisecond, wantErr: ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.delay > 0 {
					select {
					case <-time.After(tt.delay):
					case <-r.Context().Done():
						return
					}
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			notices := &recordingNotifier{}
			tier := &IPTier{Client: httpclient.NewClient(5 * time.Second), Endpoint: server.URL, Timeout: 50 * time.Millisecond}
			if tt.delay == 0 {
				tier.Timeout = time.Second
			}

			fix, err := tier.Locate(context.Background(), &Attempt{notifier: notices})
			assert.Equal(t, []string{noticeUsingIP}, notices.all())
			if tt.want != (models.LocationFix{}) {
				require.NoError(t, err)
				assert.Equal(t, tt.want, fix)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDeviceTier_PermissionTimeout(t *testing.T) {
	device := &mockDevice{}
	device.On("ProviderStatus", mock.Anything).Return(ProviderStatus{LocationServicesEnabled: true}, nil)
	device.On("RequestForegroundPermission", mock.Anything).
		After(200*time.Millisecond).
		Return(models.PermissionGranted, nil)

	tier := &DeviceTier{Device: device, PermissionTimeout: 20 * time.Millisecond, PositionTimeout: time.Second}
	attempt := &Attempt{}

	_, err := tier.Locate(context.Background(), attempt)
	assert.ErrorIs(t, err, ErrTimeout)
	require.True(t, attempt.Permission.Valid)
	assert.True(t, attempt.Permission.Value.TimedOut)
	assert.False(t, attempt.Permission.Value.Granted)
	assert.Equal(t, models.PermissionUndetermined, attempt.Permission.Value.Status)
	device.AssertNotCalled(t, "CurrentPosition", mock.Anything, mock.Anything)
}

func TestDeviceTier_PositionError(t *testing.T) {
	device := &mockDevice{}
	device.On("ProviderStatus", mock.Anything).Return(ProviderStatus{LocationServicesEnabled: true}, nil)
	device.On("RequestForegroundPermission", mock.Anything).Return(models.PermissionGranted, nil)
	device.On("CurrentPosition", mock.Anything, AccuracyHigh).Return(Position{}, errors.New("no satellites"))

	attempt := &Attempt{}
	_, err := (&DeviceTier{Device: device, PermissionTimeout: time.Second, PositionTimeout: time.Second}).Locate(context.Background(), attempt)
	assert.ErrorContains(t, err, "no satellites")
	assert.True(t, attempt.Permission.Value.Granted)
	device.AssertExpectations(t)
}

func TestCountryTier(t *testing.T) {
	t.Run("unknown code", func(t *testing.T) {
		device := &mockDevice{}
		device.On("CountryCode", mock.Anything).Return("AQ", nil)
		_, err := (&CountryTier{Device: device, Timeout: time.Second}).Locate(context.Background(), &Attempt{})
		assert.ErrorIs(t, err, ErrUnknownCountry)
	})

	t.Run("static device without country", func(t *testing.T) {
		device := NewStaticDevice(config.DeviceConfig{})
		_, err := (&CountryTier{Device: device, Timeout: time.Second}).Locate(context.Background(), &Attempt{})
		assert.ErrorIs(t, err, ErrNoCountry)
	})

	t.Run("known code", func(t *testing.T) {
		device := NewStaticDevice(config.DeviceConfig{CountryCode: "NZ"})
		fix, err := (&CountryTier{Device: device, Timeout: time.Second}).Locate(context.Background(), &Attempt{})
		require.NoError(t, err)
		assert.InDelta(t, -41.2865, fix.Latitude, 1e-9)
	})
}

func TestCountryTableIsUsable(t *testing.T) {
	for code, fix := range countryCenters {
		assert.NoError(t, validFix(fix), code)
	}
}

func TestStaticDevice(t *testing.T) {
	ctx := context.Background()
	d := NewStaticDevice(config.DeviceConfig{ServicesEnabled: true})

	status, err := d.ProviderStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.LocationServicesEnabled)

	perm, _ := d.RequestForegroundPermission(ctx)
	assert.Equal(t, models.PermissionDenied, perm)

	_, err = d.CurrentPosition(ctx, AccuracyHigh)
	assert.ErrorIs(t, err, ErrNoPosition)
}
