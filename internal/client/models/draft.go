package models

// Draft holds in-progress create-form values. It has no identity.
type Draft struct {
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Note     string `json:"note,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// DraftFields lists the form fields in display order.
var DraftFields = []string{"title", "category", "prompt", "note", "imageUrl"}

func (d *Draft) field(name string) *string {
	switch name {
	case "title":
		return &d.Title
	case "category":
		return &d.Category
	case "prompt":
		return &d.Prompt
	case "note":
		return &d.Note
	case "imageUrl":
		return &d.ImageURL
	}
	return nil
}

// Set assigns a form field by name. Unknown names are ignored and reported.
func (d *Draft) Set(name, value string) bool {
	f := d.field(name)
	if f == nil {
		return false
	}
	*f = value
	return true
}

// Get returns a form field by name.
func (d *Draft) Get(name string) string {
	if f := d.field(name); f != nil {
		return *f
	}
	return ""
}

func (d Draft) IsEmpty() bool {
	return d == Draft{}
}

// ToRecord converts a committed draft into record payload. The prompt text
// becomes the "original" variant; identity is assigned by the catalog.
func (d Draft) ToRecord() Record {
	r := Record{
		Title:    d.Title,
		Category: d.Category,
		Note:     d.Note,
		ImageURL: d.ImageURL,
	}
	if d.Prompt != "" {
		r.Variants = Variants{"original": d.Prompt}
	}
	return r
}
