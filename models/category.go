package models

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Slug        string               `bson:"slug" json:"slug"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	Image       string               `bson:"image,omitempty" json:"image,omitempty"`
	Parent      *primitive.ObjectID  `bson:"parent" json:"parent"`
	Ancestors   []primitive.ObjectID `bson:"ancestors" json:"ancestors"`
	Level       int                  `bson:"level" json:"level"`
	SortOrder   int                  `bson:"sortOrder" json:"sortOrder"`
	IsActive    bool                 `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children"`
}

var reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(s string) string {
	s = reNonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(s, "-")
}

// Lineage returns the ancestors (root first) and level for a child of parent.
// A nil parent yields a root category.
func Lineage(parent *Category) ([]primitive.ObjectID, int) {
	if parent == nil {
		return []primitive.ObjectID{}, 0
	}
	anc := make([]primitive.ObjectID, 0, len(parent.Ancestors)+1)
	anc = append(anc, parent.Ancestors...)
	anc = append(anc, parent.ID)
	return anc, parent.Level + 1
}

// IsSelfOrDescendant reports whether c is id itself or lies under id.
func (c *Category) IsSelfOrDescendant(id primitive.ObjectID) bool {
	if c.ID == id {
		return true
	}
	for _, a := range c.Ancestors {
		if a == id {
			return true
		}
	}
	return false
}

// RelinkDescendants recomputes ancestors and level for every category in
// descendants after root has moved. Parents are resolved through the Parent
// pointers, which do not change when an ancestor moves.
func RelinkDescendants(root Category, descendants []Category) []Category {
	byParent := make(map[primitive.ObjectID][]int)
	for i, d := range descendants {
		if d.Parent != nil {
			byParent[*d.Parent] = append(byParent[*d.Parent], i)
		}
	}

	out := make([]Category, len(descendants))
	copy(out, descendants)

	queue := []Category{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, i := range byParent[parent.ID] {
			out[i].Ancestors, out[i].Level = Lineage(&parent)
			queue = append(queue, out[i])
		}
	}
	return out
}

// BuildTree nests a flat category list. Orphans (parent not in the list)
// are treated as roots.
func BuildTree(cats []Category) []*CategoryNode {
	nodes := make(map[primitive.ObjectID]*CategoryNode, len(cats))
	for _, c := range cats {
		nodes[c.ID] = &CategoryNode{Category: c, Children: []*CategoryNode{}}
	}

	var roots []*CategoryNode
	for _, c := range cats {
		n := nodes[c.ID]
		if c.Parent != nil {
			if p, ok := nodes[*c.Parent]; ok {
				p.Children = append(p.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*CategoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].SortOrder != nodes[j].SortOrder {
			return nodes[i].SortOrder < nodes[j].SortOrder
		}
		return nodes[i].Name < nodes[j].Name
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}
