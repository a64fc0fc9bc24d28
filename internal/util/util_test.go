package util

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsUUID(t *testing.T) {
	_, err := uuid.Parse(NewID())
	require.NoError(t, err)
	assert.Equal(t, "UTC", Now().Location().String())
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateEmail("rh@example.org"))
	assert.EqualError(t, ValidateEmail("  "), "email obligatoire")
	assert.EqualError(t, ValidateEmail("pas-un-email"), "email invalide")
	assert.Error(t, ValidatePassword("court"))
	assert.EqualError(t, RequireString(" ", "serviceId"), "serviceId obligatoire")
}

func TestTrimPtr(t *testing.T) {
	blank := "   "
	value := "  motif  "

	assert.Nil(t, TrimPtr(nil))
	assert.Nil(t, TrimPtr(&blank))
	require.NotNil(t, TrimPtr(&value))
	assert.Equal(t, "motif", *TrimPtr(&value))
}

func TestOptionalPresence(t *testing.T) {
	var body struct {
		PersonnelID Optional[json.RawMessage] `json:"personnelId"`
		Commentaire Optional[string]          `json:"commentaire"`
		Statut      Optional[string]          `json:"statut"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"personnelId": null, "commentaire": "à revoir"}`), &body))

	assert.True(t, body.PersonnelID.Set)
	assert.Nil(t, body.PersonnelID.Value)
	assert.True(t, body.Commentaire.Set)
	assert.Equal(t, "à revoir", *body.Commentaire.Value)
	assert.False(t, body.Statut.Set)
	assert.Equal(t, "A_TRAITER", *Some("A_TRAITER").Value)
}
