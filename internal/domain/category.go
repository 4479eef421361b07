package domain

import "time"

// Category is a top-level taxonomy node. Deleting a category is a soft
// delete that also hides its subcategories.
type Category struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Slug            string     `json:"slug"`
	Description     string     `json:"description"`
	ImageURL        string     `json:"image_url"`
	MetaTitle       string     `json:"meta_title"`
	MetaDescription string     `json:"meta_description"`
	MetaKeywords    []string   `json:"meta_keywords"`
	DisplayOrder    int        `json:"display_order"`
	IsActive        bool       `json:"is_active"`
	IsDeleted       bool       `json:"is_deleted"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SubCategory belongs to exactly one category.
type SubCategory struct {
	ID          string       `json:"id"`
	CategoryID  string       `json:"category_id"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Description string       `json:"description"`
	ImageURL    string       `json:"image_url"`
	IsDeleted   bool         `json:"is_deleted"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty"`
	Category    *CategoryRef `json:"category,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// CategoryRef is the parent projection attached to subcategory listings.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ImportResult summarises a CSV bulk import.
type ImportResult struct {
	Total    int `json:"total"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}
