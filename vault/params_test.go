package vault

import (
	"errors"
	"testing"

	"github.com/hengadev/errsx"
	"github.com/stretchr/testify/assert"
)

func TestKDFParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  KDFParams
		wantErr bool
		errKeys []string
	}{
		{
			name:   "defaults",
			params: DefaultKDFParams(),
		},
		{
			name:   "test params",
			params: testParams,
		},
		{
			name:   "recommended ceiling",
			params: KDFParams{LogN: 20, R: 8, P: 1},
		},
		{
			name:   "forced 4 GiB",
			params: KDFParams{LogN: 22, R: 8, P: 1},
		},
		{
			name:   "forced parallelism",
			params: KDFParams{LogN: 21, R: 8, P: 32},
		},
		{
			name:    "zero log2_n",
			params:  KDFParams{LogN: 0, R: 8, P: 1},
			wantErr: true,
			errKeys: []string{"log2_n"},
		},
		{
			name:    "log2_n above 63",
			params:  KDFParams{LogN: 64, R: 8, P: 1},
			wantErr: true,
			errKeys: []string{"log2_n"},
		},
		{
			name:    "everything zero",
			params:  KDFParams{},
			wantErr: true,
			errKeys: []string{"log2_n", "r", "p"},
		},
		{
			name:    "r*p too large",
			params:  KDFParams{LogN: 1, R: 1 << 15, P: 1 << 15},
			wantErr: true,
			errKeys: []string{"r*p"},
		},
		{
			name:    "huge log2_n",
			params:  KDFParams{LogN: 63, R: 1, P: 1},
			wantErr: true,
			errKeys: []string{"memory"},
		},
		{
			name:    "huge r",
			params:  KDFParams{LogN: 60, R: 1 << 20, P: 1},
			wantErr: true,
			errKeys: []string{"memory"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, ErrInvalidKDFParams)
			var errs errsx.Map
			if !errors.As(err, &errs) {
				t.Fatal("expected an errsx.Map in the chain")
			}
			assert.Len(t, errs, len(tt.errKeys))
			for _, key := range tt.errKeys {
				if _, ok := errs[key]; !ok {
					t.Errorf("expected key '%s' in errsx.Map", key)
				}
			}
		})
	}
}

func TestKDFParamsExceedsRecommended(t *testing.T) {
	assert.False(t, DefaultKDFParams().ExceedsRecommended())
	assert.False(t, KDFParams{LogN: 20, R: 8, P: 1}.ExceedsRecommended())
	assert.True(t, KDFParams{LogN: 21, R: 8, P: 1}.ExceedsRecommended())
	assert.True(t, KDFParams{LogN: 12, R: 9, P: 1}.ExceedsRecommended())
	assert.True(t, KDFParams{LogN: 12, R: 8, P: 2}.ExceedsRecommended())
}

func TestKDFParamsString(t *testing.T) {
	assert.Equal(t, "log2_n=12 r=8 p=1", DefaultKDFParams().String())
}
