package retailers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildrelay/procurement-backend/pkg/config"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
)

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.RetailerConfig{
		Partners: []config.RetailerPartner{
			{ID: "home-supply", Name: "Home Supply Co", BaseURL: "http://hs.test", DiscountRate: 0.15, TaxExemptCertificate: "TX-1"},
			{ID: "lumberline", Name: "Lumberline", BaseURL: "http://ll.test", DiscountRate: 0.10, TaxExemptCertificate: "TX-2"},
		},
	}

	reg, err := NewRegistryFromConfig(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"home-supply", "lumberline"}, reg.IDs())
	assert.True(t, reg.Has("home-supply"))
	assert.False(t, reg.Has("acme"))

	partner, err := reg.Get("lumberline")
	require.NoError(t, err)
	assert.Equal(t, "Lumberline", partner.Name())
	assert.Equal(t, "TX-2", partner.Credentials().TaxExemptCertificate)

	rates := reg.DiscountRates()
	assert.True(t, rates["home-supply"].Equal(decimal.NewFromFloat(0.15)))
	assert.True(t, rates["lumberline"].Equal(decimal.NewFromFloat(0.10)))
}

func TestRegistryUnknownRetailer(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	_, err = reg.Get("ghost")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	a, err := NewPartnerClient(config.RetailerPartner{ID: "dup", BaseURL: "http://a.test"})
	require.NoError(t, err)
	b, err := NewPartnerClient(config.RetailerPartner{ID: "dup", BaseURL: "http://b.test"})
	require.NoError(t, err)

	_, err = NewRegistry(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate retailer")
}
