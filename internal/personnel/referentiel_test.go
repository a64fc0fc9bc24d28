package personnel

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRefs struct {
	rows map[RefKind]map[string]RefEntry
}

func newMemoryRefs() *memoryRefs {
	return &memoryRefs{rows: map[RefKind]map[string]RefEntry{}}
}

func (m *memoryRefs) InsertRef(_ context.Context, kind RefKind, e RefEntry) (bool, error) {
	if kind == KindService {
		if _, ok := m.rows[KindFormation][e.Formation]; !ok {
			return false, ErrUnknownFormation
		}
	}
	if m.rows[kind] == nil {
		m.rows[kind] = map[string]RefEntry{}
	}
	if _, ok := m.rows[kind][e.Code]; ok {
		return false, nil
	}
	m.rows[kind][e.Code] = e
	return true, nil
}

func TestDecodeRefs(t *testing.T) {
	entries, err := DecodeRefs(strings.NewReader(`
- code: HIR001
  libelle: ONCOLOGIE
  formation: HIR
- code: DG001
  libelle: SECRETARIAT GENERAL
  formation: DG
`))
	require.NoError(t, err)
	assert.Equal(t, []RefEntry{
		{Code: "HIR001", Libelle: "ONCOLOGIE", Formation: "HIR"},
		{Code: "DG001", Libelle: "SECRETARIAT GENERAL", Formation: "DG"},
	}, entries)

	entries, err = DecodeRefs(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImportIsIdempotent(t *testing.T) {
	store := newMemoryRefs()
	im := NewImporter(store)
	ctx := context.Background()
	formations := []RefEntry{{Code: "HIR", Libelle: "Hôpital Ibn Rochd"}, {Code: " DG ", Libelle: "Direction Générale"}}

	n, err := im.Import(ctx, KindFormation, formations)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, store.rows[KindFormation], "DG")

	n, err = im.Import(ctx, KindFormation, formations)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = im.Import(ctx, KindService, []RefEntry{{Code: "HIR001", Libelle: "ONCOLOGIE", Formation: "HIR"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportValidation(t *testing.T) {
	im := NewImporter(newMemoryRefs())
	ctx := context.Background()

	_, err := im.Import(ctx, RefKind("agents"), nil)
	assert.EqualError(t, err, `référentiel inconnu: "agents"`)

	_, err = im.Import(ctx, KindPoste, []RefEntry{{Code: "MED", Libelle: "MEDECIN"}, {Code: "INF"}})
	assert.EqualError(t, err, "entrée 2: code et libelle obligatoires")

	_, err = im.Import(ctx, KindPoste, []RefEntry{{Code: "MED", Libelle: "MEDECIN"}, {Code: "MED", Libelle: "MEDECIN"}})
	assert.EqualError(t, err, "entrée 2: code en double MED")

	_, err = im.Import(ctx, KindService, []RefEntry{{Code: "HIR001", Libelle: "ONCOLOGIE"}})
	assert.EqualError(t, err, "entrée 1 (HIR001): formation obligatoire")

	_, err = im.Import(ctx, KindService, []RefEntry{{Code: "HIR001", Libelle: "ONCOLOGIE", Formation: "XX"}})
	require.ErrorIs(t, err, ErrUnknownFormation)
	assert.EqualError(t, err, "service HIR001: formation inconnue XX")
}
