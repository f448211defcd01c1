package models

import "time"

// Category represents a node of the product taxonomy.
// Categories nest through ParentID; a nil parent marks a root.
type Category struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"not null" json:"name"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug"`
	Description string     `json:"description"`
	ParentID    *uint      `gorm:"index" json:"parent_id"`
	Parent      *Category  `gorm:"foreignKey:ParentID" json:"-"`
	Children    []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	SortOrder   int        `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	ProductsCount int64 `gorm:"-" json:"products_count"`
}

func (c *Category) TableName() string {
	return "categories"
}

// BuildCategoryTree nests a flat, ordered category list under its roots.
// Categories whose parent is missing from the list are treated as roots.
func BuildCategoryTree(flat []Category) []Category {
	byParent := make(map[uint][]Category)
	known := make(map[uint]bool, len(flat))
	for _, c := range flat {
		known[c.ID] = true
	}

	var roots []Category
	for _, c := range flat {
		if c.ParentID == nil || !known[*c.ParentID] {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}

	var attach func(nodes []Category) []Category
	attach = func(nodes []Category) []Category {
		for i := range nodes {
			nodes[i].Children = attach(byParent[nodes[i].ID])
		}
		return nodes
	}
	return attach(roots)
}
