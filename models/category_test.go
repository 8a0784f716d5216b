package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func child(parent *Category, name string) Category {
	c := Category{ID: primitive.NewObjectID(), Name: name, Slug: Slugify(name)}
	if parent != nil {
		id := parent.ID
		c.Parent = &id
	}
	c.Ancestors, c.Level = Lineage(parent)
	return c
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "men-s-t-shirts", Slugify("  Men's T-Shirts "))
	assert.Equal(t, "home-kitchen", Slugify("Home & Kitchen"))
}

func TestLineage(t *testing.T) {
	root := child(nil, "Fashion")
	assert.Empty(t, root.Ancestors)
	assert.Equal(t, 0, root.Level)

	men := child(&root, "Men")
	shirts := child(&men, "Shirts")
	assert.Equal(t, []primitive.ObjectID{root.ID, men.ID}, shirts.Ancestors)
	assert.Equal(t, 2, shirts.Level)

	assert.True(t, shirts.IsSelfOrDescendant(root.ID))
	assert.True(t, shirts.IsSelfOrDescendant(shirts.ID))
	assert.False(t, root.IsSelfOrDescendant(shirts.ID))
}

func TestRelinkDescendantsAfterMove(t *testing.T) {
	fashion := child(nil, "Fashion")
	men := child(&fashion, "Men")
	shirts := child(&men, "Shirts")
	formal := child(&shirts, "Formal")

	// move Men under a new root "Apparel"
	apparel := child(nil, "Apparel")
	parentID := apparel.ID
	men.Parent = &parentID
	men.Ancestors, men.Level = Lineage(&apparel)

	out := RelinkDescendants(men, []Category{formal, shirts})
	require.Len(t, out, 2)

	byName := map[string]Category{}
	for _, c := range out {
		byName[c.Name] = c
	}
	assert.Equal(t, []primitive.ObjectID{apparel.ID, men.ID}, byName["Shirts"].Ancestors)
	assert.Equal(t, 2, byName["Shirts"].Level)
	assert.Equal(t, []primitive.ObjectID{apparel.ID, men.ID, shirts.ID}, byName["Formal"].Ancestors)
	assert.Equal(t, 3, byName["Formal"].Level)
}

func TestBuildTree(t *testing.T) {
	a := child(nil, "B Root")
	b := child(nil, "A Root")
	a1 := child(&a, "Leaf")
	orphanParent := child(nil, "Gone")
	orphan := child(&orphanParent, "Orphan")

	tree := BuildTree([]Category{a1, a, b, orphan})
	require.Len(t, tree, 3)
	assert.Equal(t, "A Root", tree[0].Name)
	assert.Equal(t, "B Root", tree[1].Name)
	assert.Equal(t, "Orphan", tree[2].Name)
	require.Len(t, tree[1].Children, 1)
	assert.Equal(t, "Leaf", tree[1].Children[0].Name)
	assert.NotNil(t, tree[0].Children)
}
