package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidtracker/aidtracker/internal/dispatch"
)

func TestDefaultDirectory(t *testing.T) {
	d := dispatch.DefaultDirectory()

	s, ok := d.Lookup("FireAdmin@Gmail.com ")
	require.True(t, ok)
	assert.Equal(t, dispatch.StationFire, s)

	_, ok = d.Lookup("citizen@example.com")
	assert.False(t, ok)
	assert.Equal(t, 3, d.Len())
}

func TestDirectory_AdminsFor(t *testing.T) {
	d := dispatch.DefaultDirectory()

	admins := d.AdminsFor(dispatch.Classify("Fire in building").Targets)
	assert.Equal(t, []dispatch.Admin{
		{Email: "fireadmin@gmail.com", Station: dispatch.StationFire},
		{Email: "medicaladmin@gmail.com", Station: dispatch.StationAmbulance},
	}, admins)

	admins = d.AdminsFor(dispatch.Classify("").Targets)
	assert.Equal(t, []dispatch.Admin{
		{Email: "medicaladmin@gmail.com", Station: dispatch.StationAmbulance},
		{Email: "policeadmin@gmail.com", Station: dispatch.StationPolice},
	}, admins)

	assert.Empty(t, d.AdminsFor(nil))
}

func TestParseDirectory(t *testing.T) {
	t.Run("empty uses defaults", func(t *testing.T) {
		d, err := dispatch.ParseDirectory("")
		require.NoError(t, err)
		assert.Equal(t, 3, d.Len())
	})

	t.Run("custom entries", func(t *testing.T) {
		d, err := dispatch.ParseDirectory("chief@city.gov=police, medic@city.gov=Ambulance,")
		require.NoError(t, err)
		assert.Equal(t, 2, d.Len())

		s, ok := d.Lookup("medic@city.gov")
		require.True(t, ok)
		assert.Equal(t, dispatch.StationAmbulance, s)
	})

	t.Run("unknown station", func(t *testing.T) {
		_, err := dispatch.ParseDirectory("chief@city.gov=coastguard")
		assert.ErrorIs(t, err, dispatch.ErrUnknownStation)
	})

	t.Run("malformed entry", func(t *testing.T) {
		_, err := dispatch.ParseDirectory("chief@city.gov")
		assert.Error(t, err)
	})
}

func TestNewDirectory_RejectsNone(t *testing.T) {
	_, err := dispatch.NewDirectory(map[string]dispatch.Station{"a@b.c": dispatch.StationNone})
	assert.ErrorIs(t, err, dispatch.ErrUnknownStation)
}
