package orderedlist

import (
	"testing"

	"github.com/dmehra2102/ListForge/internal/domain"
	"github.com/dmehra2102/ListForge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	db := testutil.OpenDB(t)
	mixins := mixinList(t, db, domain.ForeignKey("parent"))
	pages := newList(t, db, domain.ListConfig{Name: "pages", Table: "pages", Scope: domain.ForeignKey("parent")})

	r, err := NewRegistry(pages, mixins)
	require.NoError(t, err)
	assert.Equal(t, []string{"mixins", "pages"}, r.Names())

	got, err := r.Lookup("pages")
	require.NoError(t, err)
	assert.Same(t, pages, got)

	_, err = r.Lookup("widgets")
	assert.ErrorIs(t, err, domain.ErrUnknownList)

	_, err = NewRegistry(mixins, mixins)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
